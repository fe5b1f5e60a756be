package midi

import (
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func cc(ch Channel, control, value uint8) ControlChangeMessage {
    return ControlChangeMessage{Channel: ch, Control: control, Value: value}
}

func feed(t *testing.T, n *NrpnInterpreter, msgs ...ControlChangeMessage) []Message {
    t.Helper()
    var out []Message
    for _, m := range msgs {
        got, err := n.Handle(m)
        require.NoError(t, err)
        out = append(out, got...)
    }
    return out
}

func split(msgs []Message) (ccs []ControlChangeMessage, nrpns []NrpnMessage) {
    for _, m := range msgs {
        switch v := m.(type) {
        case ControlChangeMessage:
            ccs = append(ccs, v)
        case NrpnMessage:
            nrpns = append(nrpns, v)
        }
    }
    return ccs, nrpns
}

func TestNrpnHappyPath(t *testing.T) {
    n := NewNrpnInterpreter(NrpnOn)
    out := feed(t, n, cc(2, 99, 3), cc(2, 98, 17), cc(2, 6, 100), cc(2, 38, 1))

    ccs, nrpns := split(out)
    assert.Empty(t, ccs)
    require.Len(t, nrpns, 1)
    assert.Equal(t, NrpnMessage{Channel: 2, Parameter: 3*128 + 17, Value: 100*128 + 1}, nrpns[0])
    assert.Equal(t, 0, n.Pending(2))
}

func TestNrpnAbandonReplaysInOrder(t *testing.T) {
    n := NewNrpnInterpreter(NrpnOn)
    out := feed(t, n, cc(0, 99, 1), cc(0, 98, 2), cc(0, 5, 3))

    assert.Equal(t, []Message{cc(0, 99, 1), cc(0, 98, 2), cc(0, 5, 3)}, out)
    assert.Equal(t, 0, n.Pending(0))
}

func TestNrpnOnSendControlChange(t *testing.T) {
    n := NewNrpnInterpreter(NrpnOnSendControlChange)

    // 途切れたシーケンスは到着時に流した分だけ（再送しない）
    out := feed(t, n, cc(0, 99, 1), cc(0, 98, 2), cc(0, 5, 3))
    assert.Equal(t, []Message{cc(0, 99, 1), cc(0, 98, 2), cc(0, 5, 3)}, out)

    // 完成したシーケンスは CC 4つ + NRPN
    out = feed(t, n, cc(0, 99, 1), cc(0, 98, 2), cc(0, 6, 3), cc(0, 38, 4))
    ccs, nrpns := split(out)
    assert.Len(t, ccs, 4)
    require.Len(t, nrpns, 1)
    assert.Equal(t, NrpnMessage{Channel: 0, Parameter: 130, Value: 388}, nrpns[0])
    assert.Equal(t, Message(nrpns[0]), out[len(out)-1])
}

func TestNrpnOffPassesEverything(t *testing.T) {
    n := NewNrpnInterpreter(NrpnOff)
    in := []ControlChangeMessage{cc(0, 99, 1), cc(0, 98, 2), cc(0, 6, 3), cc(0, 38, 4), cc(0, 7, 5)}
    out := feed(t, n, in...)

    require.Len(t, out, len(in))
    for i := range in {
        assert.Equal(t, Message(in[i]), out[i])
    }
}

func TestNrpnNonChainControlsPassImmediately(t *testing.T) {
    n := NewNrpnInterpreter(NrpnOn)
    out := feed(t, n, cc(0, 7, 100), cc(0, 6, 1), cc(0, 38, 2))
    assert.Equal(t, []Message{cc(0, 7, 100), cc(0, 6, 1), cc(0, 38, 2)}, out)
}

func TestNrpnBreakingMsbStartsNewSequence(t *testing.T) {
    n := NewNrpnInterpreter(NrpnOn)
    out := feed(t, n,
        cc(0, 99, 1), cc(0, 98, 2),
        cc(0, 99, 10), cc(0, 98, 11), cc(0, 6, 12), cc(0, 38, 13),
    )

    ccs, nrpns := split(out)
    assert.Equal(t, []ControlChangeMessage{cc(0, 99, 1), cc(0, 98, 2)}, ccs)
    require.Len(t, nrpns, 1)
    assert.Equal(t, uint16(10*128+11), nrpns[0].Parameter)
    assert.Equal(t, uint16(12*128+13), nrpns[0].Value)
}

func TestNrpnRepeatedStepBreaksChain(t *testing.T) {
    n := NewNrpnInterpreter(NrpnOn)
    // 98 の後にもう一度 98 は期待値（6）ではない
    out := feed(t, n, cc(0, 99, 1), cc(0, 98, 2), cc(0, 98, 3))
    assert.Equal(t, []Message{cc(0, 99, 1), cc(0, 98, 2), cc(0, 98, 3)}, out)
}

func TestNrpnChannelsAreIndependent(t *testing.T) {
    n := NewNrpnInterpreter(NrpnOn)
    out := feed(t, n,
        cc(0, 99, 1),
        cc(1, 99, 5),
        cc(0, 98, 2),
        cc(1, 98, 6),
        cc(0, 6, 3),
        cc(1, 7, 99), // ch1 だけ途切れる
        cc(0, 38, 4),
    )

    ccs, nrpns := split(out)
    assert.Equal(t, []ControlChangeMessage{cc(1, 99, 5), cc(1, 98, 6), cc(1, 7, 99)}, ccs)
    require.Len(t, nrpns, 1)
    assert.Equal(t, NrpnMessage{Channel: 0, Parameter: 130, Value: 388}, nrpns[0])
}

func TestNrpnNeverLosesOrDuplicates(t *testing.T) {
    // 入力の CC はどのモードでもちょうど1回ずつ出てくる（On で NRPN に消費された分を除く）
    stream := []ControlChangeMessage{
        cc(0, 99, 1), cc(0, 98, 2), cc(0, 99, 3), cc(0, 98, 4), cc(0, 6, 5), cc(0, 38, 6),
        cc(0, 6, 7), cc(0, 38, 8), cc(0, 99, 9), cc(0, 1, 10), cc(0, 99, 11),
    }
    for _, mode := range []NrpnMode{NrpnOff, NrpnOn, NrpnOnSendControlChange} {
        t.Run(mode.String(), func(t *testing.T) {
            n := NewNrpnInterpreter(mode)
            ccs, nrpns := split(feed(t, n, stream...))
            switch mode {
            case NrpnOff:
                assert.Equal(t, stream, ccs)
                assert.Empty(t, nrpns)
            case NrpnOnSendControlChange:
                assert.Equal(t, stream, ccs)
                assert.Len(t, nrpns, 1)
            case NrpnOn:
                want := append([]ControlChangeMessage{}, stream[0:2]...)
                want = append(want, stream[6:10]...)
                assert.Equal(t, want, ccs)
                assert.Len(t, nrpns, 1)
                // 最後の 99 はまだ保留中
                assert.Equal(t, 1, n.Pending(0))
            }
        })
    }
}

func TestNrpnSetModeDropsPending(t *testing.T) {
    n := NewNrpnInterpreter(NrpnOn)
    feed(t, n, cc(0, 99, 1), cc(0, 98, 2))
    require.Equal(t, 2, n.Pending(0))

    n.SetMode(NrpnOnSendControlChange)
    assert.Equal(t, NrpnOnSendControlChange, n.Mode())
    assert.Equal(t, 0, n.Pending(0))

    out := feed(t, n, cc(0, 6, 3))
    assert.Equal(t, []Message{cc(0, 6, 3)}, out)
}

func TestNrpnDecodeFailureClearsSlot(t *testing.T) {
    n := NewNrpnInterpreter(NrpnOn)
    feed(t, n, cc(0, 99, 1), cc(0, 98, 2), cc(0, 6, 3))
    require.Equal(t, 3, n.Pending(0))

    // 4つ目の値が 7bit を超えると組み立てに失敗する
    out, err := n.Handle(cc(0, 38, 200))
    require.ErrorIs(t, err, ErrNrpnDecode)
    assert.Empty(t, out)
    assert.Equal(t, 0, n.Pending(0))

    // 失敗後も次の CC は通常どおり流れる
    out = feed(t, n, cc(0, 7, 90))
    assert.Equal(t, []Message{cc(0, 7, 90)}, out)
}

func TestDecodeNrpn(t *testing.T) {
    m := NrpnMessage{Channel: 9, Parameter: 16383, Value: 5482}
    parts := m.ControlChanges()
    got, err := DecodeNrpn(parts[:])
    require.NoError(t, err)
    assert.Equal(t, m, got)

    bt := m.Encode()
    require.Len(t, bt, 12)
    assert.Equal(t, []byte{0xB9, 99, 0x7F, 0xB9, 98, 0x7F, 0xB9, 6, 0b0010_1010, 0xB9, 38, 0b0110_1010}, bt)

    _, err = DecodeNrpn(parts[:3])
    assert.ErrorIs(t, err, ErrNrpnDecode)

    mixed := parts
    mixed[2].Channel = 1
    _, err = DecodeNrpn(mixed[:])
    assert.ErrorIs(t, err, ErrNrpnDecode)

    swapped := m.ControlChanges()
    swapped[0], swapped[1] = swapped[1], swapped[0]
    _, err = DecodeNrpn(swapped[:])
    assert.ErrorIs(t, err, ErrNrpnDecode)
}

func TestParseNrpnMode(t *testing.T) {
    for in, want := range map[string]NrpnMode{"": NrpnOff, "OFF": NrpnOff, "on": NrpnOn, " on-send-cc ": NrpnOnSendControlChange} {
        got, err := ParseNrpnMode(in)
        require.NoError(t, err, in)
        assert.Equal(t, want, got, in)
    }
    _, err := ParseNrpnMode("maybe")
    assert.Error(t, err)
}
