package main

import (
    "bufio"
    "encoding/hex"
    "flag"
    "fmt"
    "io"
    "log"
    "os"
    "strings"

    "github.com/charmbracelet/lipgloss"

    "midictl/internal/midi"
)

// printer はイベント1件を1行で出力する。color=false ならプレーンテキスト。
type printer struct {
    w     io.Writer
    color bool
}

var (
    styleType = map[midi.Type]lipgloss.Style{
        midi.NoteOn:          lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
        midi.NoteOff:         lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
        midi.ControlChange:   lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
        midi.ProgramChange:   lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
        midi.PitchBend:       lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
        midi.Nrpn:            lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
    }
    styleChannel = lipgloss.NewStyle().Faint(true)
    styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func (p printer) event(ev midi.Event) {
    typ := fmt.Sprintf("%-17s", ev.Type)
    ch := fmt.Sprintf("%-4s", ev.Channel)
    body := fmt.Sprint(ev.Message)
    if p.color {
        if st, ok := styleType[ev.Type]; ok {
            typ = st.Render(typ)
        }
        ch = styleChannel.Render(ch)
    }
    fmt.Fprintf(p.w, "%s %s %s\n", typ, ch, body)
}

func (p printer) fail(raw []byte, err error) {
    line := fmt.Sprintf("error % X: %v", raw, err)
    if p.color {
        line = styleError.Render(line)
    }
    fmt.Fprintln(p.w, line)
}

// parseHexBuffer は "B0 63 01" / "b06301" / "B0,63,01" / "0xB0 0x63 0x01" を受け付ける。
// 1桁のトークンだけ 0 埋めし、それ以外の奇数桁はエラー。
func parseHexBuffer(s string) ([]byte, error) {
    s = strings.TrimSpace(s)
    if s == "" {
        return nil, fmt.Errorf("空の入力")
    }
    fields := strings.FieldsFunc(s, func(r rune) bool {
        return r == ' ' || r == '\t' || r == ',' || r == ':'
    })
    var sb strings.Builder
    for _, f := range fields {
        f = strings.TrimPrefix(strings.TrimPrefix(f, "0x"), "0X")
        switch {
        case len(f) == 1:
            f = "0" + f
        case len(f)%2 == 1:
            return nil, fmt.Errorf("16進数の桁数が奇数です %q", f)
        }
        sb.WriteString(f)
    }
    bt, err := hex.DecodeString(sb.String())
    if err != nil {
        return nil, fmt.Errorf("16進数として解釈できません %q: %w", s, err)
    }
    return bt, nil
}

// decodeLines は入力の各行を1メッセージとして処理する。空行と # 以降は無視。
func decodeLines(r io.Reader, d *midi.Dispatcher, p printer) (events, errs int, err error) {
    sc := bufio.NewScanner(r)
    for sc.Scan() {
        line := sc.Text()
        if i := strings.IndexByte(line, '#'); i >= 0 {
            line = line[:i]
        }
        if strings.TrimSpace(line) == "" {
            continue
        }
        ne, nerr := decodeOne(line, d, p)
        events += ne
        errs += nerr
    }
    return events, errs, sc.Err()
}

func decodeOne(s string, d *midi.Dispatcher, p printer) (events, errs int) {
    raw, err := parseHexBuffer(s)
    if err != nil {
        p.fail(nil, err)
        return 0, 1
    }
    evs, err := d.Process(raw)
    for _, ev := range evs {
        p.event(ev)
    }
    if err != nil {
        p.fail(raw, err)
        errs++
    }
    return len(evs), errs
}

func runDecode(args []string) {
    fs := flag.NewFlagSet("decode", flag.ExitOnError)
    nrpn := fs.String("nrpn", "on", "NRPN 解釈モード: off|on|on-send-cc")
    color := fs.Bool("color", false, "イベント種別ごとに色付けして出力")
    fs.Usage = decodeUsage
    _ = fs.Parse(args)

    mode, err := midi.ParseNrpnMode(*nrpn)
    if err != nil {
        log.Fatalf("-nrpn: %v", err)
    }
    d := midi.NewDispatcher(mode)
    p := printer{w: os.Stdout, color: *color}

    var errs int
    if fs.NArg() > 0 {
        for _, a := range fs.Args() {
            _, ne := decodeOne(a, d, p)
            errs += ne
        }
    } else {
        _, errs, err = decodeLines(os.Stdin, d, p)
        if err != nil {
            log.Fatalf("標準入力の読み込みに失敗: %v", err)
        }
    }
    if pending := pendingNrpn(d); pending > 0 {
        log.Printf("注意: 未完了の NRPN シーケンスがあります（%d メッセージ保留中、出力されません）", pending)
    }
    if errs > 0 {
        os.Exit(1)
    }
}

// pendingNrpn は全チャネル合計の保留中 CC 数。
func pendingNrpn(d *midi.Dispatcher) int {
    n := 0
    for ch := midi.Channel(0); ch < 16; ch++ {
        n += d.Pending(ch)
    }
    return n
}

func decodeUsage() {
    fmt.Fprintln(os.Stderr, "Usage: midictl decode [options] [HEX ...]")
    fmt.Fprintln(os.Stderr, "\n説明: 16進のMIDIメッセージを1つずつデコードします。引数が無ければ標準入力を1行1メッセージで読みます。")
    fmt.Fprintln(os.Stderr, "\n主なオプション:")
    fmt.Fprintln(os.Stderr, "  -nrpn   NRPN 解釈モード: off|on|on-send-cc (default: on)")
    fmt.Fprintln(os.Stderr, "  -color  種別ごとに色付けして出力")
    fmt.Fprintln(os.Stderr, "\n例:")
    fmt.Fprintln(os.Stderr, "  midictl decode '83 7F 0B' 'E0 6A 2A'")
}
