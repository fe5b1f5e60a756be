package obsws

import (
    "errors"
    "fmt"
    "log"
    "strings"
    "sync"
    "time"

    "github.com/andreykaipov/goobs"
    "github.com/andreykaipov/goobs/api/requests/scenes"
)

// sceneClient は Switcher が使う OBS 操作。テストでは差し替える。
type sceneClient interface {
    SetScene(name string) error
    SceneNames() ([]string, error)
    Disconnect() error
}

type goobsClient struct {
    c *goobs.Client
}

func (g goobsClient) SetScene(name string) error {
    _, err := g.c.Scenes.SetCurrentProgramScene(&scenes.SetCurrentProgramSceneParams{
        SceneName: &name,
    })
    return err
}

func (g goobsClient) SceneNames() ([]string, error) {
    lst, err := g.c.Scenes.GetSceneList(nil)
    if err != nil {
        return nil, err
    }
    names := make([]string, 0, len(lst.Scenes))
    for _, s := range lst.Scenes {
        names = append(names, s.SceneName)
    }
    return names, nil
}

func (g goobsClient) Disconnect() error { return g.c.Disconnect() }

var dial = func(addr, password string) (sceneClient, error) {
    var c *goobs.Client
    var err error
    if password == "" {
        c, err = goobs.New(addr)
    } else {
        c, err = goobs.New(addr, goobs.WithPassword(password))
    }
    if err != nil {
        return nil, err
    }
    return goobsClient{c: c}, nil
}

type DialOptions struct {
    Addrs     []string
    Password  string   // common password (fallback)
    Passwords []string // optional: aligned with Addrs for per-connection passwords
    Timeout   time.Duration
}

type target struct {
    addr string
    c    sceneClient
}

// Switcher は複数の OBS へ接続を張ったまま、MIDI イベントごとにシーンを切り替える。
type Switcher struct {
    targets []target
    timeout time.Duration
}

// Dial は全アドレスへ接続する。一部の失敗はログに出してスキップし、全滅ならエラー。
func Dial(opts DialOptions) (*Switcher, error) {
    s := &Switcher{timeout: opts.Timeout}
    var failed []string
    for i, raw := range opts.Addrs {
        a := NormalizeObsAddr(raw)
        if a == "" {
            continue
        }
        // choose per-addr password if provided; otherwise use common password; empty means no auth
        var pw string
        if len(opts.Passwords) == len(opts.Addrs) {
            pw = strings.TrimSpace(opts.Passwords[i])
        } else {
            pw = strings.TrimSpace(opts.Password)
        }
        c, err := dial(a, pw)
        if err != nil {
            log.Printf("接続失敗[%d]: ws://%s: %v", i, a, err)
            failed = append(failed, a)
            continue
        }
        s.targets = append(s.targets, target{addr: a, c: c})
        log.Printf("接続完了[%d]: ws://%s", i, a)
    }
    if len(s.targets) == 0 {
        if len(failed) > 0 {
            return nil, fmt.Errorf("全ての接続に失敗しました。対象: %s", strings.Join(failed, ", "))
        }
        return nil, errors.New("有効な接続先がありません。-addrs を確認してください。")
    }
    if len(failed) > 0 {
        log.Printf("一部接続に失敗しました（スキップされます）: %s", strings.Join(failed, ", "))
    }
    return s, nil
}

// Addrs は接続中のアドレス一覧。
func (s *Switcher) Addrs() []string {
    out := make([]string, 0, len(s.targets))
    for _, t := range s.targets {
        out = append(out, t.addr)
    }
    return out
}

// SetScene は全インスタンスで同時にシーンを切り替える。失敗したインスタンス分のエラーをまとめて返す。
func (s *Switcher) SetScene(scene string) error {
    if strings.TrimSpace(scene) == "" {
        return errors.New("シーン名が空です")
    }
    var wg sync.WaitGroup
    errCh := make(chan error, len(s.targets))
    for _, t := range s.targets {
        wg.Add(1)
        go func(t target) {
            defer wg.Done()
            // goobs のリクエストにタイムアウトが無いので goroutine でラップ
            if err := withTimeout(func() error { return t.c.SetScene(scene) }, s.timeout); err != nil {
                errCh <- fmt.Errorf("[%s] SetCurrentProgramScene 失敗: %w", t.addr, err)
            }
        }(t)
    }
    wg.Wait()
    close(errCh)

    var errs []error
    for e := range errCh {
        errs = append(errs, e)
    }
    return errors.Join(errs...)
}

// SceneNames は最初の接続先のシーン一覧を OBS が返す順で返す。
func (s *Switcher) SceneNames() ([]string, error) {
    var names []string
    err := withTimeout(func() error {
        var err error
        names, err = s.targets[0].c.SceneNames()
        return err
    }, s.timeout)
    if err != nil {
        return nil, fmt.Errorf("シーン一覧取得失敗: %w", err)
    }
    return names, nil
}

// MissingScenes は names のうち、最初の接続先に存在しないシーン名を返す。
func (s *Switcher) MissingScenes(names []string) ([]string, error) {
    have, err := s.SceneNames()
    if err != nil {
        return nil, err
    }
    exists := make(map[string]struct{}, len(have))
    for _, n := range have {
        exists[n] = struct{}{}
    }
    var missing []string
    seen := map[string]struct{}{}
    for _, n := range names {
        if _, ok := exists[n]; ok {
            continue
        }
        if _, dup := seen[n]; dup {
            continue
        }
        seen[n] = struct{}{}
        missing = append(missing, n)
    }
    return missing, nil
}

// Close は全接続を切断する。
func (s *Switcher) Close() {
    for _, t := range s.targets {
        _ = t.c.Disconnect()
    }
}

// NormalizeObsAddr は goobs.New に渡せる host:port に整える。
// ws:// や wss:// のスキーム、末尾のスラッシュを除去する。
func NormalizeObsAddr(a string) string {
    a = strings.TrimSpace(a)
    for _, p := range []string{"ws://", "wss://"} {
        if strings.HasPrefix(strings.ToLower(a), p) {
            a = a[len(p):]
            break
        }
    }
    return strings.TrimRight(a, "/")
}

func withTimeout(fn func() error, d time.Duration) error {
    if d <= 0 {
        return fn()
    }
    ch := make(chan error, 1)
    go func() { ch <- fn() }()
    select {
    case err := <-ch:
        return err
    case <-time.After(d):
        return fmt.Errorf("timeout after %s", d)
    }
}
