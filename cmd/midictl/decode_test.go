package main

import (
    "bytes"
    "strings"
    "testing"

    "midictl/internal/midi"
)

func TestParseHexBuffer(t *testing.T) {
    want := []byte{0xB0, 0x63, 0x01}
    for _, in := range []string{"B0 63 01", "b06301", "B0,63,01", "B0:63:01", "0xB0 0x63 0x1", "  b0 63 1 "} {
        got, err := parseHexBuffer(in)
        if err != nil {
            t.Fatalf("parseHexBuffer(%q): %v", in, err)
        }
        if !bytes.Equal(got, want) {
            t.Fatalf("parseHexBuffer(%q)=% X", in, got)
        }
    }
    // 1桁は 0 埋め
    if got, err := parseHexBuffer("B0 6"); err != nil || !bytes.Equal(got, []byte{0xB0, 0x06}) {
        t.Fatalf("parseHexBuffer(B0 6)=% X, %v", got, err)
    }
    for _, in := range []string{"", "zz", "B0 GG", "b0631", "B0 631"} {
        if _, err := parseHexBuffer(in); err == nil {
            t.Fatalf("expected error for %q", in)
        }
    }
}

func TestDecodeLines_Nrpn(t *testing.T) {
    in := strings.NewReader(`
# NRPN parameter 300, value 129
B0 63 02
B0 62 2C
90 3C 64   # 割り込んだ NoteOn
B0 06 01
B0 26 01

83 7F 0B
B0 63 00
B0 05 01   # チェーンが途切れる
F8
`)
    var out bytes.Buffer
    events, errs, err := decodeLines(in, midi.NewDispatcher(midi.NrpnOn), printer{w: &out})
    if err != nil {
        t.Fatal(err)
    }
    if events != 5 || errs != 1 {
        t.Fatalf("events=%d errs=%d\n%s", events, errs, out.String())
    }
    lines := strings.Split(strings.TrimSpace(out.String()), "\n")
    wantPrefix := []string{"note_on", "nrpn", "note_off", "control_change", "control_change", "error F8"}
    if len(lines) != len(wantPrefix) {
        t.Fatalf("lines=%d\n%s", len(lines), out.String())
    }
    for i, p := range wantPrefix {
        if !strings.HasPrefix(lines[i], p) {
            t.Fatalf("line %d = %q; want prefix %q", i, lines[i], p)
        }
    }
    if !strings.Contains(lines[1], "parameter=300 value=129") {
        t.Fatalf("nrpn line=%q", lines[1])
    }
}

func TestDecodeOne_BadHex(t *testing.T) {
    var out bytes.Buffer
    n, errs := decodeOne("xyz", midi.NewDispatcher(midi.NrpnOff), printer{w: &out})
    if n != 0 || errs != 1 || !strings.HasPrefix(out.String(), "error") {
        t.Fatalf("n=%d errs=%d out=%q", n, errs, out.String())
    }
}

func TestPendingNrpn(t *testing.T) {
    d := midi.NewDispatcher(midi.NrpnOn)
    var out bytes.Buffer
    decodeOne("B0 63 01", d, printer{w: &out})
    decodeOne("B3 63 01", d, printer{w: &out})
    decodeOne("B3 62 01", d, printer{w: &out})
    if got := pendingNrpn(d); got != 3 {
        t.Fatalf("pending=%d", got)
    }
}
