//go:build midi_native

package midi

import (
    "fmt"
    "log"
    "strings"
    "sync"

    "gitlab.com/gomidi/midi"
    "gitlab.com/gomidi/rtmididrv"
)

// inputWrap は rtmididrv のポート/ドライバをまとめて Close する薄いラッパです。
type inputWrap struct{
    drv  *rtmididrv.Driver
    in   midi.In
    evCh chan Event
    once sync.Once

    mu     sync.Mutex // evCh の close と送信を排他
    closed bool
}

// OpenInput は指定名の入力ポートを開き、デコード済みイベントをチャネルで返す。
// 完全一致を優先し、無ければ部分一致。どちらも無ければエラー。
func OpenInput(deviceName string, opts Options) (Input, <-chan Event, error) {
    drv, err := rtmididrv.New()
    if err != nil {
        return nil, nil, fmt.Errorf("rtmididrv.New: %w", err)
    }
    ins, err := drv.Ins()
    if err != nil {
        _ = drv.Close()
        return nil, nil, fmt.Errorf("MIDI入力列挙に失敗: %w", err)
    }
    in := findPort(ins, deviceName)
    if in == nil {
        _ = drv.Close()
        return nil, nil, fmt.Errorf("MIDI入力デバイスが見つかりません: %s", deviceName)
    }
    if err := in.Open(); err != nil {
        _ = drv.Close()
        return nil, nil, fmt.Errorf("入力オープン失敗: %w", err)
    }

    size := opts.Buffer
    if size <= 0 {
        size = 128
    }
    w := &inputWrap{drv: drv, in: in, evCh: make(chan Event, size)}
    d := NewDispatcher(opts.Nrpn)

    // コールバックはドライバのスレッドで1つずつ呼ばれる。受信側を待たせないよう送信は非ブロッキング
    if err := in.SetListener(func(bt []byte, _ int64) {
        // Realtime/System Common は対象外
        if len(bt) > 0 && bt[0] >= 0xF0 {
            return
        }
        events, err := d.Process(bt)
        if err != nil {
            log.Printf("MIDI デコード失敗 (% X): %v", bt, err)
        }
        w.deliver(events, opts.Debug)
    }); err != nil {
        _ = in.Close()
        _ = drv.Close()
        return nil, nil, fmt.Errorf("リスナ設定失敗: %w", err)
    }

    return w, w.evCh, nil
}

func (w *inputWrap) deliver(events []Event, debug bool) {
    w.mu.Lock()
    defer w.mu.Unlock()
    if w.closed {
        return
    }
    for _, e := range events {
        select {
        case w.evCh <- e:
        default:
            if debug {
                log.Printf("イベントチャネルが満杯のため破棄: %s", e)
            }
        }
    }
}

func findPort(ins []midi.In, name string) midi.In {
    for _, p := range ins {
        if p.String() == name {
            return p
        }
    }
    for _, p := range ins {
        if strings.Contains(p.String(), name) {
            return p
        }
    }
    return nil
}

// Close はポートとドライバを閉じ、イベントチャネルを閉じる。組み立て中の NRPN は捨てる。
func (w *inputWrap) Close() error {
    var err error
    w.once.Do(func(){
        _ = w.in.StopListening()
        _ = w.in.Close()
        err = w.drv.Close()
        w.mu.Lock()
        w.closed = true
        close(w.evCh)
        w.mu.Unlock()
    })
    return err
}

// ListInputs は利用可能な入力デバイスの名称一覧を返す。
func ListInputs() ([]string, error) {
    drv, err := rtmididrv.New()
    if err != nil {
        return nil, err
    }
    defer drv.Close()
    ins, err := drv.Ins()
    if err != nil {
        return nil, err
    }
    names := make([]string, 0, len(ins))
    for _, i := range ins {
        names = append(names, i.String())
    }
    return names, nil
}
