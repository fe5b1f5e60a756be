// Package scenemap は MIDI イベントから OBS シーン名を引く対応表です。
package scenemap

import (
    "fmt"
    "strings"

    "midictl/internal/midi"
)

// Kind はマッピング対象のイベント種別。
type Kind string

const (
    Note    Kind = "note"
    CC      Kind = "cc"
    Program Kind = "pc"
    Nrpn    Kind = "nrpn"
)

// Key は Kind:ch:number 形式で一意になる。ch は 1-16。
type Key struct {
    Kind    Kind
    Channel int
    Number  int
}

func (k Key) String() string { return fmt.Sprintf("%s:%d:%d", k.Kind, k.Channel, k.Number) }

// Map は Key → シーン名。
type Map map[Key]string

// ParseKind は "note_on" や "control_change" のような JSON の表記も受け付ける。
func ParseKind(s string) (Kind, bool) {
    switch strings.ToLower(strings.TrimSpace(s)) {
    case "", "note", "note_on":
        return Note, true
    case "cc", "control_change":
        return CC, true
    case "pc", "program", "program_change":
        return Program, true
    case "nrpn":
        return Nrpn, true
    default:
        return "", false
    }
}

// MaxNumber は kind ごとの番号の上限（nrpn は 14bit、それ以外は 7bit）。
func MaxNumber(k Kind) int {
    if k == Nrpn {
        return 16383
    }
    return 127
}

// Add は範囲を検証して追加する。
func (m Map) Add(kind Kind, channel, number int, scene string) error {
    scene = strings.TrimSpace(scene)
    if scene == "" {
        return fmt.Errorf("empty scene")
    }
    if channel < 1 || channel > 16 {
        return fmt.Errorf("channel %d out of range (1-16)", channel)
    }
    if number < 0 || number > MaxNumber(kind) {
        return fmt.Errorf("%s number %d out of range (0-%d)", kind, number, MaxNumber(kind))
    }
    m[Key{Kind: kind, Channel: channel, Number: number}] = scene
    return nil
}

// ParseSpecs は "[kind:]ch:number=Scene Name" 形式の配列を解析する。
// kind を省略すると note。不正な要素は読み飛ばし、件数だけ skipped に数える。
func ParseSpecs(values []string) (m Map, skipped int) {
    m = Map{}
    for _, v := range values {
        v = strings.TrimSpace(v)
        if v == "" { continue }
        parts := strings.SplitN(v, "=", 2)
        if len(parts) != 2 { skipped++; continue }
        left := strings.Split(strings.TrimSpace(parts[0]), ":")
        kind := Note
        switch len(left) {
        case 2:
        case 3:
            k, ok := ParseKind(left[0])
            if !ok { skipped++; continue }
            kind = k
            left = left[1:]
        default:
            skipped++
            continue
        }
        var chv, nv int
        if _, err := fmt.Sscanf(strings.TrimSpace(left[0]), "%d", &chv); err != nil { skipped++; continue }
        if _, err := fmt.Sscanf(strings.TrimSpace(left[1]), "%d", &nv); err != nil { skipped++; continue }
        if err := m.Add(kind, chv, nv, parts[1]); err != nil { skipped++; continue }
    }
    return m, skipped
}

// Merge は other の内容で上書きする（CLI 指定を JSON より優先するときに使う）。
func (m Map) Merge(other Map) {
    for k, v := range other {
        m[k] = v
    }
}

// KeyOf はイベントがトリガとして扱えるなら Key を返す。
// NoteOn の velocity 0 と CC の value 0 はリリース扱いで対象外。
func KeyOf(ev midi.Event) (Key, bool) {
    ch := ev.Channel.Number()
    switch m := ev.Message.(type) {
    case midi.NoteOnMessage:
        if m.Velocity == 0 {
            return Key{}, false
        }
        return Key{Kind: Note, Channel: ch, Number: int(m.Key)}, true
    case midi.ControlChangeMessage:
        if m.Value == 0 {
            return Key{}, false
        }
        return Key{Kind: CC, Channel: ch, Number: int(m.Control)}, true
    case midi.ProgramChangeMessage:
        return Key{Kind: Program, Channel: ch, Number: int(m.Program)}, true
    case midi.NrpnMessage:
        return Key{Kind: Nrpn, Channel: ch, Number: int(m.Parameter)}, true
    default:
        return Key{}, false
    }
}

// Lookup はイベントに対応するシーンを返す。
func (m Map) Lookup(ev midi.Event) (Key, string, bool) {
    k, ok := KeyOf(ev)
    if !ok {
        return Key{}, "", false
    }
    scene, ok := m[k]
    return k, scene, ok
}
