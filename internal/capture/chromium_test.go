package capture

import (
	"context"
	"testing"
	"time"
)

func TestOptionsDefaults(t *testing.T) {
	o := Options{URL: "http://127.0.0.1:8080/", OutputPath: "/tmp/w.png"}
	if err := o.applyDefaults(); err != nil {
		t.Fatalf("applyDefaults: %v", err)
	}
	if o.Width != DefaultWidth || o.Height != DefaultHeight || o.Timeout != DefaultTimeout {
		t.Fatalf("defaults not applied: %+v", o)
	}

	o = Options{URL: "http://x/", OutputPath: "/tmp/w.png", Width: 800, Timeout: time.Second}
	_ = o.applyDefaults()
	if o.Width != 800 || o.Timeout != time.Second {
		t.Fatalf("explicit values overridden: %+v", o)
	}
}

func TestWidgetPNGValidatesOptions(t *testing.T) {
	if err := WidgetPNG(context.Background(), Options{OutputPath: "x.png"}); err == nil {
		t.Fatalf("expected error without URL")
	}
	if err := WidgetPNG(context.Background(), Options{URL: "http://x/"}); err == nil {
		t.Fatalf("expected error without output path")
	}
}
