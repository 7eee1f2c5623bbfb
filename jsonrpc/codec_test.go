package jsonrpc

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestCodecRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewCodec(strings.NewReader(""), &buf)
	if err := w.Write([]byte(`{"jsonrpc":"2.0","method":"ping"}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r := NewCodec(&buf, io.Discard)
	got, err := r.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != `{"jsonrpc":"2.0","method":"ping"}` {
		t.Errorf("body = %q", got)
	}
}

func TestCodecWriteFraming(t *testing.T) {
	var buf bytes.Buffer
	c := NewCodec(strings.NewReader(""), &buf)
	if err := c.Write([]byte("{}")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := "Content-Length: 2\r\n\r\n{}"
	if buf.String() != want {
		t.Errorf("frame = %q, want %q", buf.String(), want)
	}
}

func TestCodecSkipsUnknownHeaders(t *testing.T) {
	in := "Content-Length: 2\r\nContent-Type: application/vscode-jsonrpc; charset=utf-8\r\n\r\n{}"
	c := NewCodec(strings.NewReader(in), io.Discard)
	got, err := c.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "{}" {
		t.Errorf("body = %q", got)
	}
}

func TestCodecHeaderCaseInsensitive(t *testing.T) {
	in := "content-length: 2\r\n\r\n{}"
	c := NewCodec(strings.NewReader(in), io.Discard)
	if _, err := c.Read(); err != nil {
		t.Fatalf("Read: %v", err)
	}
}

func TestCodecZeroLengthBody(t *testing.T) {
	in := "Content-Length: 0\r\n\r\n"
	c := NewCodec(strings.NewReader(in), io.Discard)
	got, err := c.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("body = %q, want empty", got)
	}
}

func TestCodecMissingContentLength(t *testing.T) {
	in := "Content-Type: application/json\r\n\r\n{}"
	c := NewCodec(strings.NewReader(in), io.Discard)
	if _, err := c.Read(); err == nil {
		t.Fatal("expected error for missing Content-Length")
	}
}

func TestCodecMalformedHeader(t *testing.T) {
	in := "this is not a header\r\n\r\n"
	c := NewCodec(strings.NewReader(in), io.Discard)
	if _, err := c.Read(); err == nil {
		t.Fatal("expected error for malformed header line")
	}
}

func TestCodecInvalidContentLength(t *testing.T) {
	for _, val := range []string{"abc", "-5"} {
		in := "Content-Length: " + val + "\r\n\r\n{}"
		c := NewCodec(strings.NewReader(in), io.Discard)
		if _, err := c.Read(); err == nil {
			t.Errorf("expected error for Content-Length %q", val)
		}
	}
}

func TestCodecTruncatedBody(t *testing.T) {
	in := "Content-Length: 100\r\n\r\n{}"
	c := NewCodec(strings.NewReader(in), io.Discard)
	if _, err := c.Read(); err == nil {
		t.Fatal("expected error for truncated body")
	}
}

func TestCodecSequentialMessages(t *testing.T) {
	var buf bytes.Buffer
	w := NewCodec(strings.NewReader(""), &buf)
	for _, body := range []string{`{"a":1}`, `{"b":2}`, `{"c":3}`} {
		if err := w.Write([]byte(body)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	r := NewCodec(&buf, io.Discard)
	for _, want := range []string{`{"a":1}`, `{"b":2}`, `{"c":3}`} {
		got, err := r.Read()
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if string(got) != want {
			t.Errorf("body = %q, want %q", got, want)
		}
	}
}
