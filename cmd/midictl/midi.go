package main

import (
    "context"
    "encoding/json"
    "errors"
    "flag"
    "fmt"
    "log"
    "os"
    "os/signal"
    "strconv"
    "strings"
    "syscall"
    "time"

    "midictl/internal/config"
    "midictl/internal/midi"
    "midictl/internal/obsws"
    "midictl/internal/scenemap"
)

func runListDevices() {
    names, err := midi.ListInputs()
    if err != nil {
        log.Printf("MIDI デバイス一覧の取得に失敗: %v", err)
        log.Println("ネイティブMIDI機能はビルドタグ 'midi_native' が必要です。")
        os.Exit(1)
    }
    if len(names) == 0 {
        fmt.Println("(入力デバイスなし)")
        return
    }
    for _, n := range names {
        fmt.Println(n)
    }
}

// midiOptions は runMidi の設定（JSON とフラグをマージした結果）。
type midiOptions struct {
    Device    string
    Channels  []int
    Nrpn      midi.NrpnMode
    Addrs     []string
    Password  string
    Passwords []string
    RateLimit time.Duration
    Timeout   time.Duration
    Scenes    scenemap.Map
    DryRun    bool
    Color     bool
    Debug     bool
}

func runMidi(args []string) {
    if len(args) > 0 && (args[0] == "ls-devices" || args[0] == "list" || args[0] == "devices") {
        runListDevices()
        return
    }

    fs := flag.NewFlagSet("midi", flag.ExitOnError)

    addrs := fs.String("addrs", "127.0.0.1:4455", "OBS WebSocket のアドレスをカンマ区切り（host:port）")
    password := fs.String("password", "", "OBS WebSocket のパスワード（共通）")
    passwords := fs.String("passwords", "", "複数接続の個別パスワード。-addrs と同じ順でカンマ区切り（数が合わない場合は無視）")
    device := fs.String("device", "", "監視する MIDI 入力デバイス名")
    channel := fs.String("channel", "", "受け付ける MIDI チャネル (1-16、カンマ区切り。未指定は全て)")
    nrpn := fs.String("nrpn", "off", "NRPN 解釈モード: off|on|on-send-cc")
    ratelimit := fs.Duration("ratelimit", 50*time.Millisecond, "同じマッピングの最短発火間隔")
    timeout := fs.Duration("timeout", 5*time.Second, "OBS リクエストのタイムアウト")
    dryRun := fs.Bool("dry-run", false, "OBS に接続せず、イベントとマッピング結果だけ表示")
    color := fs.Bool("color", false, "イベント表示を色付けする")
    debug := fs.Bool("debug", false, "デバッグログを有効化")
    maps := multiFlag{}
    fs.Var(&maps, "map", "イベント→シーンの対応（複数可）。例: 1:36=SceneA, cc:1:64=SceneB, nrpn:1:300=SceneC")
    configPath := fs.String("config", "", "JSON設定ファイルへのパス")

    fs.Usage = midiUsage
    _ = fs.Parse(args)

    // フラグの明示指定を検出（未指定なら JSON の値を採用）
    setFlags := map[string]bool{}
    fs.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })

    cfg := config.Default()
    if strings.TrimSpace(*configPath) != "" {
        c, err := config.Load(*configPath)
        if err != nil {
            log.Fatalf("-config の読み込みに失敗しました: %v", err)
        }
        cfg = c
    } else if p, err := config.DefaultPath(); err == nil {
        // 規定の場所にあれば使う（無ければ既定値のまま）
        c, err := config.Load(p)
        switch {
        case err == nil:
            cfg = c
            *configPath = p
        case !errors.Is(err, os.ErrNotExist):
            log.Printf("警告: %s を読み込めません: %v", p, err)
        }
    }
    opts, err := mergeOptions(cfg, setFlags, flagValues{
        Device: *device, Channel: *channel, Nrpn: *nrpn, Addrs: *addrs,
        Password: *password, Passwords: *passwords,
        RateLimit: *ratelimit, Timeout: *timeout, Maps: maps,
    })
    if err != nil {
        log.Fatal(err)
    }
    opts.DryRun, opts.Color, opts.Debug = *dryRun, *color, *debug

    if opts.Device == "" {
        log.Println("-device を指定してください（JSONの device も利用可）。利用可能なデバイスは 'midictl ls-devices' で確認できます。")
        os.Exit(2)
    }
    if opts.Debug {
        log.Printf("Debug: addrs=%v device=%s channels=%v nrpn=%s ratelimit=%s timeout=%s maps=%d config=%s",
            opts.Addrs, opts.Device, opts.Channels, opts.Nrpn, opts.RateLimit, opts.Timeout, len(opts.Scenes), *configPath)
    }
    if len(opts.Scenes) == 0 && !opts.DryRun {
        log.Println("警告: シーンのマッピングが指定されていません。-map \"1:36=Scene\" のように指定してください。")
    }

    var sw *obsws.Switcher
    if !opts.DryRun {
        sw, err = obsws.Dial(obsws.DialOptions{Addrs: opts.Addrs, Password: opts.Password, Passwords: opts.Passwords, Timeout: opts.Timeout})
        if err != nil {
            log.Fatalf("OBS 接続失敗: %v", err)
        }
        defer sw.Close()
        log.Printf("OBS 接続中: %s", strings.Join(sw.Addrs(), ", "))
        warnMissingScenes(sw, opts.Scenes)
    }

    // MIDI ドライバをオープン（ビルドタグ未指定の通常ビルドではエラーになるスタブ）
    in, events, err := midi.OpenInput(opts.Device, midi.Options{Nrpn: opts.Nrpn, Debug: opts.Debug})
    if err != nil {
        log.Printf("MIDI 入力のオープンに失敗: %v", err)
        log.Println("ネイティブMIDI機能はビルドタグ 'midi_native' が必要です。")
        os.Exit(1)
    }
    defer in.Close()

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()
    go func() {
        <-ctx.Done()
        // Close でイベントチャネルが閉じ、下のループが終わる
        _ = in.Close()
    }()

    log.Printf("MIDI 受信開始: device=%s nrpn=%s", opts.Device, opts.Nrpn)
    r := &router{opts: opts, out: printer{w: os.Stdout, color: opts.Color}, lastAt: map[scenemap.Key]time.Time{}, now: time.Now}
    if sw != nil {
        r.setScene = sw.SetScene
    }
    for ev := range events {
        r.handle(ev)
    }
    log.Println("MIDI 受信終了")
}

// runInitConfig は既定値の設定ファイルを書き出す。既存ファイルは -force が無ければ上書きしない。
func runInitConfig(args []string) {
    fs := flag.NewFlagSet("init-config", flag.ExitOnError)
    out := fs.String("o", "", "出力先（未指定は OS 既定の設定ディレクトリ）")
    device := fs.String("device", "", "device の初期値")
    force := fs.Bool("force", false, "既存ファイルを上書きする")
    _ = fs.Parse(args)

    path := *out
    if path == "" {
        p, err := config.DefaultPath()
        if err != nil {
            log.Fatalf("設定ディレクトリを取得できません: %v", err)
        }
        path = p
    }
    if _, err := os.Stat(path); err == nil && !*force {
        log.Fatalf("%s は既に存在します（上書きするには -force）", path)
    }
    c := config.Default()
    c.Device = *device
    c.Mappings = append(c.Mappings, config.Mapping{Type: "note_on", Channel: 1, Number: 36, Scene: "Scene"})
    if err := config.Save(path, c); err != nil {
        log.Fatalf("保存に失敗: %v", err)
    }
    fmt.Println(path)
}

// runGenConfig は OBS のシーン一覧から連番のマッピングを作り、設定 JSON として出力する。
// 例: midictl gen-config -addr 127.0.0.1:4455 -type note -channel 1 -start 36 -o config.json
func runGenConfig(args []string) {
    fs := flag.NewFlagSet("gen-config", flag.ExitOnError)
    addr := fs.String("addr", "127.0.0.1:4455", "OBS のアドレス (host:port)")
    password := fs.String("password", "", "OBS のパスワード")
    timeout := fs.Duration("timeout", 5*time.Second, "OBS リクエストのタイムアウト")
    typ := fs.String("type", "note", "割り当てるイベント種別: note|cc|pc|nrpn")
    channel := fs.Int("channel", 1, "割り当てる MIDI チャネル (1-16)")
    start := fs.Int("start", 36, "割り当て開始番号 (既定36:C1)")
    device := fs.String("device", "", "device の値（JSONに記録するだけ）")
    out := fs.String("o", "", "出力先ファイル（未指定は標準出力）")
    force := fs.Bool("force", false, "既存ファイルを上書きする")
    _ = fs.Parse(args)

    sw, err := obsws.Dial(obsws.DialOptions{Addrs: []string{*addr}, Password: *password, Timeout: *timeout})
    if err != nil {
        log.Fatalf("OBS 接続失敗: %v", err)
    }
    names, err := sw.SceneNames()
    sw.Close()
    if err != nil {
        log.Fatal(err)
    }

    c, dropped, err := generatedConfig(names, *typ, *channel, *start)
    if err != nil {
        log.Fatal(err)
    }
    if dropped > 0 {
        log.Printf("警告: 番号の上限を超えたシーン %d 件は割り当てていません", dropped)
    }
    c.Device = *device
    c.Addrs = []string{obsws.NormalizeObsAddr(*addr)}

    if *out == "" {
        bt, err := json.MarshalIndent(c, "", "  ")
        if err != nil {
            log.Fatalf("JSON 生成失敗: %v", err)
        }
        os.Stdout.Write(bt)
        os.Stdout.WriteString("\n")
        return
    }
    if _, err := os.Stat(*out); err == nil && !*force {
        log.Fatalf("%s は既に存在します（上書きするには -force）", *out)
    }
    if err := config.Save(*out, c); err != nil {
        log.Fatalf("保存に失敗: %v", err)
    }
    log.Printf("%d 件のマッピングを書き出しました: %s", len(c.Mappings), *out)
}

// generatedConfig は既定値にシーン一覧からの連番マッピングを載せた設定を返す。
func generatedConfig(names []string, typ string, channel, start int) (*config.Config, int, error) {
    ms, dropped, err := config.NumberedMappings(names, typ, channel, start)
    if err != nil {
        return nil, 0, err
    }
    c := config.Default()
    c.Channel = strconv.Itoa(channel)
    if kind, _ := scenemap.ParseKind(typ); kind == scenemap.Nrpn {
        c.Nrpn = midi.NrpnOn.String()
    }
    c.Mappings = ms
    return c, dropped, nil
}

// router はイベント1件ごとにフィルタ・表示・シーン切替を行う。
type router struct {
    opts     midiOptions
    out      printer
    setScene func(string) error
    lastAt   map[scenemap.Key]time.Time
    now      func() time.Time
}

// handle はシーン切替を試みた場合にそのシーン名を返す。
func (r *router) handle(ev midi.Event) string {
    if !containsChannel(r.opts.Channels, ev.Channel.Number()) {
        return ""
    }
    r.out.event(ev)
    key, scene, ok := r.opts.Scenes.Lookup(ev)
    if !ok {
        return ""
    }
    if last, seen := r.lastAt[key]; seen {
        if since := r.now().Sub(last); since < r.opts.RateLimit {
            if r.opts.Debug {
                log.Printf("skip by ratelimit %s for %s (remain %s)", r.opts.RateLimit, key, r.opts.RateLimit-since)
            }
            return ""
        }
    }
    r.lastAt[key] = r.now()

    if r.setScene == nil {
        log.Printf("[dry-run] シーン切替: %s (from %s)", scene, key)
        return scene
    }
    if err := r.setScene(scene); err != nil {
        log.Printf("シーン切替失敗: %v", err)
    } else {
        log.Printf("シーン切替: %s (from %s)", scene, key)
    }
    return scene
}

func warnMissingScenes(sw *obsws.Switcher, m scenemap.Map) {
    names := make([]string, 0, len(m))
    for _, s := range m {
        names = append(names, s)
    }
    missing, err := sw.MissingScenes(names)
    if err != nil {
        log.Printf("警告: %v", err)
        return
    }
    for _, s := range missing {
        log.Printf("警告: OBS にシーンがありません: %s", s)
    }
}

// flagValues はフラグの生の値。
type flagValues struct {
    Device, Channel, Nrpn, Addrs, Password, Passwords string
    RateLimit, Timeout                                time.Duration
    Maps                                              []string
}

// mergeOptions は JSON 設定にフラグを重ねる。明示指定されたフラグが優先、マッピングは JSON→CLI の順にマージ。
func mergeOptions(cfg *config.Config, set map[string]bool, fv flagValues) (midiOptions, error) {
    pick := func(name, flagVal, cfgVal string) string {
        if set[name] || strings.TrimSpace(cfgVal) == "" {
            return flagVal
        }
        return cfgVal
    }
    var o midiOptions

    o.Device = pick("device", fv.Device, cfg.Device)
    o.Channels = parseChannels(pick("channel", fv.Channel, cfg.Channel))

    o.Nrpn = cfg.NrpnMode()
    if set["nrpn"] || strings.TrimSpace(cfg.Nrpn) == "" {
        mode, err := midi.ParseNrpnMode(fv.Nrpn)
        if err != nil {
            return o, fmt.Errorf("-nrpn: %w", err)
        }
        o.Nrpn = mode
    }

    if set["addrs"] || len(cfg.Addrs) == 0 {
        o.Addrs = strings.Split(fv.Addrs, ",")
    } else {
        o.Addrs = cfg.Addrs
    }
    o.Password = pick("password", fv.Password, cfg.Password)
    if strings.TrimSpace(fv.Passwords) != "" {
        pws := strings.Split(fv.Passwords, ",")
        if len(pws) == len(o.Addrs) {
            o.Passwords = pws
        } else {
            log.Printf("警告: -passwords の数 (%d) が -addrs の数 (%d) と一致しません。-password（共通）を使用します。", len(pws), len(o.Addrs))
        }
    }

    o.RateLimit = fv.RateLimit
    if d := config.Duration(cfg.RateLimit); !set["ratelimit"] && d > 0 {
        o.RateLimit = d
    }
    o.Timeout = fv.Timeout
    if d := config.Duration(cfg.Timeout); !set["timeout"] && d > 0 {
        o.Timeout = d
    }

    scenes, skipped := cfg.SceneMap()
    cli, cliSkipped := scenemap.ParseSpecs(fv.Maps)
    if skipped+cliSkipped > 0 {
        log.Printf("警告: 解釈できないマッピングを %d 件スキップしました", skipped+cliSkipped)
    }
    scenes.Merge(cli)
    o.Scenes = scenes
    return o, nil
}

func parseChannels(s string) []int {
    if strings.TrimSpace(s) == "" {
        return nil
    }
    var out []int
    for _, p := range strings.Split(s, ",") {
        p = strings.TrimSpace(p)
        if p == "" {
            continue
        }
        var v int
        _, err := fmt.Sscanf(p, "%d", &v)
        if err == nil && v >= 1 && v <= 16 {
            out = append(out, v)
        }
    }
    return out
}

func containsChannel(list []int, v int) bool {
    if len(list) == 0 {
        return true
    }
    for _, x := range list {
        if x == v {
            return true
        }
    }
    return false
}

// multiFlag は同名フラグの複数指定を受け取るためのヘルパ。
type multiFlag []string
func (m *multiFlag) String() string { return strings.Join(*m, ",") }
func (m *multiFlag) Set(s string) error { *m = append(*m, s); return nil }

func midiUsage() {
    fmt.Fprintln(os.Stderr, "Usage: midictl midi [options] | ls-devices")
    fmt.Fprintln(os.Stderr, "\n説明: MIDI 入力をデコードして1イベント1行で表示し（NRPN 対応）、マッピングに従って OBS のシーンを切り替えます。")
    fmt.Fprintln(os.Stderr, "\n主なオプション:")
    fmt.Fprintln(os.Stderr, "  -device        監視する MIDI 入力デバイス名（完全一致→部分一致）")
    fmt.Fprintln(os.Stderr, "  -channel       受け付ける MIDI チャネル (1-16、カンマ区切り)")
    fmt.Fprintln(os.Stderr, "  -nrpn          NRPN 解釈: off|on|on-send-cc")
    fmt.Fprintln(os.Stderr, "                   on         = NRPN を構成する CC は流さず NRPN だけ")
    fmt.Fprintln(os.Stderr, "                   on-send-cc = CC も到着時にそのまま流す")
    fmt.Fprintln(os.Stderr, "  -map           イベント→シーン（複数可）: [note|cc|pc|nrpn:]ch:number=Scene")
    fmt.Fprintln(os.Stderr, "  -addrs         OBS のアドレスをカンマ区切り (host:port)")
    fmt.Fprintln(os.Stderr, "  -password      パスワード（全接続共通）")
    fmt.Fprintln(os.Stderr, "  -passwords     個別パスワードをカンマ区切り（-addrs と同順・同数）")
    fmt.Fprintln(os.Stderr, "  -ratelimit     同じマッピングの最短発火間隔 (例: 50ms)")
    fmt.Fprintln(os.Stderr, "  -timeout       OBS リクエストのタイムアウト (例: 5s)")
    fmt.Fprintln(os.Stderr, "  -config        JSON設定ファイルパス")
    fmt.Fprintln(os.Stderr, "  -dry-run       OBS に接続せず表示のみ")
    fmt.Fprintln(os.Stderr, "  -color         表示を色付け")
    fmt.Fprintln(os.Stderr, "  -debug         デバッグログを有効化")
    fmt.Fprintln(os.Stderr, "\n注: ネイティブMIDI入力はビルドタグ 'midi_native' が必要です。")
}
