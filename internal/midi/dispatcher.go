package midi

import (
    "fmt"
    "time"
)

// Dispatcher は生バイトを1メッセージずつ受け取り、型付きイベントに変換する。
// CC は NrpnInterpreter を経由する。入力デバイスごとに1つ使い、並行呼び出しはしないこと。
type Dispatcher struct {
    nrpn *NrpnInterpreter
    now  func() time.Time
}

func NewDispatcher(mode NrpnMode) *Dispatcher {
    return &Dispatcher{nrpn: NewNrpnInterpreter(mode), now: time.Now}
}

// SetNrpnMode は NRPN モードを切り替える（保留中のシーケンスは破棄）。
func (d *Dispatcher) SetNrpnMode(mode NrpnMode) { d.nrpn.SetMode(mode) }

// NrpnMode は現在の NRPN モード。
func (d *Dispatcher) NrpnMode() NrpnMode { return d.nrpn.Mode() }

// Pending は ch で NRPN として保留中の CC の数。
func (d *Dispatcher) Pending(ch Channel) int { return d.nrpn.Pending(ch) }

// Reset は NRPN の組み立て状態を破棄する。
func (d *Dispatcher) Reset() { d.nrpn.Reset() }

// Process は1つの生メッセージを処理する。
// エラーは報告用で、返されたイベントは有効（エラー時も途中までのイベントを含みうる）。
// 次の呼び出しはエラーの有無に関係なく通常どおり続けられる。
func (d *Dispatcher) Process(buf []byte) (events []Event, err error) {
    defer func() {
        if r := recover(); r != nil {
            err = fmt.Errorf("%w: panic while decoding % X: %v", ErrMalformedBuffer, buf, r)
        }
    }()

    if buf == nil {
        return nil, fmt.Errorf("%w: nil message", ErrMalformedBuffer)
    }

    msg, err := Decode(buf)
    if err != nil {
        return nil, err
    }
    at := d.now()

    cc, ok := msg.(ControlChangeMessage)
    if !ok {
        return []Event{newEvent(msg, at)}, nil
    }

    out, err := d.nrpn.Handle(cc)
    if len(out) > 0 {
        events = make([]Event, 0, len(out))
        for _, m := range out {
            events = append(events, newEvent(m, at))
        }
    }
    return events, err
}
