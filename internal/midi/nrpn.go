package midi

import (
    "fmt"
    "strings"
)

// NrpnMessage は 99, 98, 6, 38 の4つの CC から組み立てた NRPN。
// Parameter と Value はどちらも 14bit（0-16383）。
type NrpnMessage struct {
    Channel   Channel
    Parameter uint16
    Value     uint16
}

func (NrpnMessage) Type() Type             { return Nrpn }
func (m NrpnMessage) MidiChannel() Channel { return m.Channel }

func (m NrpnMessage) String() string {
    return fmt.Sprintf("NRPN parameter=%d value=%d", m.Parameter, m.Value)
}

// ControlChanges は送信順の4つの CC に分解する。
func (m NrpnMessage) ControlChanges() [4]ControlChangeMessage {
    return [4]ControlChangeMessage{
        {Channel: m.Channel, Control: uint8(NonRegisteredParameterNumberMSB), Value: uint8(m.Parameter>>7) & dataMask},
        {Channel: m.Channel, Control: uint8(NonRegisteredParameterNumberLSB), Value: uint8(m.Parameter) & dataMask},
        {Channel: m.Channel, Control: uint8(DataEntryMSB), Value: uint8(m.Value>>7) & dataMask},
        {Channel: m.Channel, Control: uint8(LSBForControl6DataEntry), Value: uint8(m.Value) & dataMask},
    }
}

// Encode は4つの CC を連結した12バイトを返す。
func (m NrpnMessage) Encode() []byte {
    out := make([]byte, 0, 12)
    for _, cc := range m.ControlChanges() {
        out = append(out, cc.Encode()...)
    }
    return out
}

var nrpnOrder = [4]ControlFunction{
    NonRegisteredParameterNumberMSB,
    NonRegisteredParameterNumberLSB,
    DataEntryMSB,
    LSBForControl6DataEntry,
}

// DecodeNrpn は順序どおりの4つの CC から NrpnMessage を組み立てる。
func DecodeNrpn(msgs []ControlChangeMessage) (NrpnMessage, error) {
    if len(msgs) != len(nrpnOrder) {
        return NrpnMessage{}, fmt.Errorf("%w: %d messages, want 4", ErrNrpnDecode, len(msgs))
    }
    ch := msgs[0].Channel
    for i, m := range msgs {
        if m.Channel != ch {
            return NrpnMessage{}, fmt.Errorf("%w: message %d on %s, want %s", ErrNrpnDecode, i, m.Channel, ch)
        }
        if m.Function() != nrpnOrder[i] {
            return NrpnMessage{}, fmt.Errorf("%w: message %d is %s, want %s", ErrNrpnDecode, i, m.Function(), nrpnOrder[i])
        }
        if m.Value&^dataMask != 0 {
            return NrpnMessage{}, fmt.Errorf("%w: message %d value %d out of 7bit range", ErrNrpnDecode, i, m.Value)
        }
    }
    return NrpnMessage{
        Channel:   ch,
        Parameter: uint16(msgs[0].Value)<<7 | uint16(msgs[1].Value),
        Value:     uint16(msgs[2].Value)<<7 | uint16(msgs[3].Value),
    }, nil
}

// NrpnMode は NRPN 解釈の動作モード。
type NrpnMode int

const (
    // NrpnOff は NRPN を解釈せず、CC をそのまま流す。
    NrpnOff NrpnMode = iota
    // NrpnOn は NRPN を構成した CC を抑止し、NRPN だけを流す。
    NrpnOn
    // NrpnOnSendControlChange は NRPN を解釈しつつ、CC も到着時に流す。
    NrpnOnSendControlChange
)

func (m NrpnMode) String() string {
    switch m {
    case NrpnOff:
        return "off"
    case NrpnOn:
        return "on"
    case NrpnOnSendControlChange:
        return "on-send-cc"
    default:
        return fmt.Sprintf("NrpnMode(%d)", int(m))
    }
}

// ParseNrpnMode は "off" / "on" / "on-send-cc" を解釈する（空文字は off）。
func ParseNrpnMode(s string) (NrpnMode, error) {
    switch strings.ToLower(strings.TrimSpace(s)) {
    case "", "off", "none":
        return NrpnOff, nil
    case "on":
        return NrpnOn, nil
    case "on-send-cc", "on_send_cc", "send-cc":
        return NrpnOnSendControlChange, nil
    default:
        return NrpnOff, fmt.Errorf("unknown nrpn mode %q (off|on|on-send-cc)", s)
    }
}

// nrpnSlot は1チャネル分のシーケンス組み立て状態。
type nrpnSlot struct {
    queueing bool
    buf      [4]ControlChangeMessage
    n        int
    last     ControlFunction
}

func (s *nrpnSlot) reset() {
    s.queueing = false
    s.n = 0
    s.last = controlUndefined
}

// NrpnInterpreter は CC の流れから NRPN シーケンスを検出する。
// 状態はチャネルごとに独立して持つ。ゴルーチン安全ではない（入力デバイスごとに1つ）。
type NrpnInterpreter struct {
    interpret   bool
    passThrough bool
    slots       [16]nrpnSlot
}

func NewNrpnInterpreter(mode NrpnMode) *NrpnInterpreter {
    n := &NrpnInterpreter{}
    n.SetMode(mode)
    return n
}

// SetMode はモードを切り替える。組み立て中のシーケンスは再送せずに破棄する。
func (n *NrpnInterpreter) SetMode(mode NrpnMode) {
    switch mode {
    case NrpnOn:
        n.interpret, n.passThrough = true, false
    case NrpnOnSendControlChange:
        n.interpret, n.passThrough = true, true
    default:
        n.interpret, n.passThrough = false, true
    }
    n.Reset()
}

// Mode は現在のモードを返す。
func (n *NrpnInterpreter) Mode() NrpnMode {
    switch {
    case !n.interpret:
        return NrpnOff
    case n.passThrough:
        return NrpnOnSendControlChange
    default:
        return NrpnOn
    }
}

// Reset は全チャネルの組み立て中シーケンスを破棄する。
func (n *NrpnInterpreter) Reset() {
    for i := range n.slots {
        n.slots[i].reset()
    }
}

// Pending は ch で保留中の CC の数を返す。
func (n *NrpnInterpreter) Pending(ch Channel) int {
    return n.slots[ch&channelMask].n
}

// Handle は1つの CC を処理し、流すべきメッセージを到着順で返す。
// 4つ揃った CC が NRPN にならなかった場合は ErrNrpnDecode を返す（保留は破棄済み）。
func (n *NrpnInterpreter) Handle(msg ControlChangeMessage) ([]Message, error) {
    if !n.interpret {
        return []Message{msg}, nil
    }

    var out []Message
    if n.passThrough {
        out = append(out, msg)
    }

    s := &n.slots[msg.Channel&channelMask]
    fn := msg.Function()
    defer func() { s.last = fn }()

    if s.queueing {
        if want, ok := nextInNrpnChain(s.last); ok && fn == want {
            s.buf[s.n] = msg
            s.n++
            if s.n < len(s.buf) {
                return out, nil
            }
            nrpn, err := DecodeNrpn(s.buf[:])
            s.reset()
            if err != nil {
                return out, err
            }
            return append(out, nrpn), nil
        }

        // チェーンが途切れたので NRPN ではなかった。抑止していた CC を元の順で流す
        if !n.passThrough {
            for i := 0; i < s.n; i++ {
                out = append(out, s.buf[i])
            }
        }
        s.reset()
    }

    if fn == NonRegisteredParameterNumberMSB {
        s.queueing = true
        s.buf[0] = msg
        s.n = 1
        return out, nil
    }
    if !n.passThrough {
        out = append(out, msg)
    }
    return out, nil
}
