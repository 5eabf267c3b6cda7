package sz

import (
	"path/filepath"
	"testing"
)

func TestConvertToAbsolute(t *testing.T) {
	abs, err := ConvertToAbsolute("/tmp/params.txt", "/etc")
	if err != nil || abs != "/tmp/params.txt" {
		t.Errorf("expected absolute path unchanged, got %q (%v)", abs, err)
	}
	abs, err = ConvertToAbsolute("params/cubic.txt", "/etc/szinterp")
	if err != nil || abs != "/etc/szinterp/params/cubic.txt" {
		t.Errorf("expected joined path, got %q (%v)", abs, err)
	}
	abs, err = ConvertToAbsolute("x.txt", "conf")
	if err != nil || !filepath.IsAbs(abs) {
		t.Errorf("expected absolute result for relative base, got %q (%v)", abs, err)
	}
}
