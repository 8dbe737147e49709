package feed

import (
	"errors"
	"testing"
)

const sampleFeed = `<?xml version="1.0"?>
<interface uri="https://apps.example.com/editor.xml">
  <name>Editor</name>
  <summary>text editor</summary>
  <implementation id="sha256=aa11" version="1.2.0" arch="linux-amd64" stability="stable" main="bin/editor">
    <archive href="https://apps.example.com/editor-1.2.0.tar.gz" size="2048"/>
    <environment name="EDITOR_HOME" mode="replace"/>
    <requires interface="https://libs.example.com/parser.xml">
      <environment name="PARSER_PATH" insert="lib" mode="prepend"/>
    </requires>
  </implementation>
  <implementation id="package:deb:editor" version="1.1.0" stability="testing" main="/usr/bin/editor"/>
</interface>`

func TestParseFeed(t *testing.T) {
	iface, err := Parse([]byte(sampleFeed))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if iface.URI != "https://apps.example.com/editor.xml" {
		t.Fatalf("unexpected uri %q", iface.URI)
	}
	if len(iface.Implementations) != 2 {
		t.Fatalf("expected 2 implementations, got %d", len(iface.Implementations))
	}

	impl := iface.Implementations[0]
	if impl.ID != "sha256=aa11" || impl.Version != "1.2.0" {
		t.Fatalf("unexpected implementation %+v", impl)
	}
	if impl.Arch.OS != "linux" || impl.Arch.CPU != "amd64" {
		t.Fatalf("unexpected arch %v", impl.Arch)
	}
	if impl.Stability != Stable {
		t.Fatalf("unexpected stability %v", impl.Stability)
	}
	if impl.DownloadURL != "https://apps.example.com/editor-1.2.0.tar.gz" || impl.Size != 2048 {
		t.Fatalf("unexpected archive %q size=%d", impl.DownloadURL, impl.Size)
	}
	if len(impl.Bindings) != 1 || impl.Bindings[0].Mode != EnvReplace {
		t.Fatalf("unexpected bindings %+v", impl.Bindings)
	}
	if len(impl.Requires) != 1 || impl.Requires[0].Interface != "https://libs.example.com/parser.xml" {
		t.Fatalf("unexpected requires %+v", impl.Requires)
	}
	if len(impl.Requires[0].Bindings) != 1 || impl.Requires[0].Bindings[0].Name != "PARSER_PATH" {
		t.Fatalf("unexpected requires bindings %+v", impl.Requires[0].Bindings)
	}

	if !iface.Implementations[1].IsPackage() {
		t.Fatalf("expected package implementation")
	}
}

func TestParseRejectsUnknownBindingElement(t *testing.T) {
	doc := `<interface uri="https://a.example.com/a.xml">
  <implementation id="sha256=bb" version="1.0.0">
    <overlay src="etc" mount="/etc"/>
  </implementation>
</interface>`
	if _, err := Parse([]byte(doc)); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestParseRejectsMissingURI(t *testing.T) {
	if _, err := Parse([]byte(`<interface><name>x</name></interface>`)); !errors.Is(err, ErrInvalidFeed) {
		t.Fatalf("expected ErrInvalidFeed, got %v", err)
	}
}

func TestParseRejectsBadStability(t *testing.T) {
	doc := `<interface uri="https://a.example.com/a.xml">
  <implementation id="sha256=cc" version="1.0.0" stability="shiny"/>
</interface>`
	if _, err := Parse([]byte(doc)); !errors.Is(err, ErrInvalidFeed) {
		t.Fatalf("expected ErrInvalidFeed, got %v", err)
	}
}
