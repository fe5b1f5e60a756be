package config

import (
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "time"

    "midictl/internal/midi"
    "midictl/internal/scenemap"
)

// Config は midictl midi の永続設定です。
// CLI フラグが明示指定された項目はフラグが優先されます。
type Config struct {
    // MIDI 入力
    Device  string `json:"device"`
    Channel string `json:"channel"` // 例: "1,2"（空=全）
    Nrpn    string `json:"nrpn"`    // off|on|on-send-cc
    // OBS 接続
    Addrs    []string `json:"addrs"`
    Password string   `json:"password"`
    // 例: "50ms"
    RateLimit string `json:"rate_limit"`
    Timeout   string `json:"timeout"`
    Mappings  []Mapping `json:"mappings"`
}

type Mapping struct {
    Type    string `json:"type"`    // note_on|control_change|program_change|nrpn
    Channel int    `json:"channel"` // 1-16
    Number  int    `json:"number"`  // note / cc / program / nrpn parameter
    Note    int    `json:"note,omitempty"` // 旧形式（number の代わり）
    Scene   string `json:"scene"`
}

func Default() *Config {
    return &Config{
        Addrs:     []string{"127.0.0.1:4455"},
        Nrpn:      "off",
        RateLimit: "50ms",
        Timeout:   "5s",
        Mappings:  []Mapping{},
    }
}

// DefaultPath は OS毎の規定の設定ディレクトリ配下のパス。
func DefaultPath() (string, error) {
    dir, err := os.UserConfigDir()
    if err != nil { return "", err }
    return filepath.Join(dir, "midictl", "config.json"), nil
}

// Load は設定を読み込みます。無い場合は os.ErrNotExist を包んだエラーを返します。
// 読み込んだ値は Validate で検証済みです。
func Load(path string) (*Config, error) {
    bt, err := os.ReadFile(path)
    if err != nil { return nil, err }
    c := Default()
    if err := json.Unmarshal(bt, c); err != nil {
        return nil, fmt.Errorf("%s: %w", path, err)
    }
    if err := c.Validate(); err != nil {
        return nil, fmt.Errorf("%s: %w", path, err)
    }
    return c, nil
}

// Save は設定を保存します。
func Save(path string, c *Config) error {
    if c == nil { return errors.New("nil config") }
    if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { return err }
    bt, err := json.MarshalIndent(c, "", "  ")
    if err != nil { return err }
    return os.WriteFile(path, bt, 0o600)
}

// Validate は文字列で持っている値を解釈できるか確認します。
func (c *Config) Validate() error {
    if _, err := midi.ParseNrpnMode(c.Nrpn); err != nil {
        return err
    }
    for _, d := range []struct{ name, v string }{{"rate_limit", c.RateLimit}, {"timeout", c.Timeout}} {
        if strings.TrimSpace(d.v) == "" { continue }
        if _, err := time.ParseDuration(d.v); err != nil {
            return fmt.Errorf("%s: %w", d.name, err)
        }
    }
    return nil
}

// NrpnMode は Nrpn を解釈した値（不正なら off）。
func (c *Config) NrpnMode() midi.NrpnMode {
    m, _ := midi.ParseNrpnMode(c.Nrpn)
    return m
}

// Duration は "50ms" のような値を解釈する。空や不正なら 0。
func Duration(s string) time.Duration {
    d, err := time.ParseDuration(strings.TrimSpace(s))
    if err != nil { return 0 }
    return d
}

// SceneMap は mappings を対応表に変換する。不正な要素は読み飛ばして件数を返す。
func (c *Config) SceneMap() (scenemap.Map, int) {
    m := scenemap.Map{}
    skipped := 0
    for _, mp := range c.Mappings {
        kind, ok := scenemap.ParseKind(mp.Type)
        if !ok { skipped++; continue }
        n := mp.Number
        if n == 0 && mp.Note != 0 { n = mp.Note }
        if err := m.Add(kind, mp.Channel, n, mp.Scene); err != nil { skipped++; continue }
    }
    return m, skipped
}

// mappingType は Kind を JSON の type 表記に戻す。
var mappingType = map[scenemap.Kind]string{
    scenemap.Note:    "note_on",
    scenemap.CC:      "control_change",
    scenemap.Program: "program_change",
    scenemap.Nrpn:    "nrpn",
}

// NumberedMappings は scenes を start から連番で割り当てる（OBS のシーン一覧から設定を作るときに使う）。
// 空の名前は読み飛ばす。番号の上限を超えた分は割り当てず、その件数を dropped で返す。
func NumberedMappings(scenes []string, typ string, channel, start int) (ms []Mapping, dropped int, err error) {
    kind, ok := scenemap.ParseKind(typ)
    if !ok {
        return nil, 0, fmt.Errorf("unknown mapping type %q (note|cc|pc|nrpn)", typ)
    }
    if channel < 1 || channel > 16 {
        return nil, 0, fmt.Errorf("channel %d out of range (1-16)", channel)
    }
    limit := scenemap.MaxNumber(kind)
    if start < 0 || start > limit {
        return nil, 0, fmt.Errorf("start %d out of range (0-%d)", start, limit)
    }
    n := start
    for _, sc := range scenes {
        if strings.TrimSpace(sc) == "" {
            continue
        }
        if n > limit {
            dropped++
            continue
        }
        ms = append(ms, Mapping{Type: mappingType[kind], Channel: channel, Number: n, Scene: sc})
        n++
    }
    return ms, dropped, nil
}
