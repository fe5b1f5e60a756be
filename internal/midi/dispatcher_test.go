package midi

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func newTestDispatcher(mode NrpnMode) *Dispatcher {
    d := NewDispatcher(mode)
    at := time.Date(2025, 8, 12, 1, 30, 0, 0, time.UTC)
    d.now = func() time.Time { return at }
    return d
}

func TestDispatcherAllVariants(t *testing.T) {
    d := newTestDispatcher(NrpnOn)
    cases := []struct {
        in   []byte
        want Message
    }{
        {[]byte{0x83, 0x7F, 0x0B}, NoteOffMessage{Channel: 3, Key: 127, Velocity: 11}},
        {[]byte{0x90, 0x3C, 0x64}, NoteOnMessage{Channel: 0, Key: 60, Velocity: 100}},
        {[]byte{0xA1, 0x3C, 0x20}, PolyKeyPressureMessage{Channel: 1, Key: 60, Pressure: 32}},
        {[]byte{0xB2, 0x07, 0x7F}, ControlChangeMessage{Channel: 2, Control: 7, Value: 127}},
        {[]byte{0xC3, 0x05}, ProgramChangeMessage{Channel: 3, Program: 5}},
        {[]byte{0xD4, 0x40}, ChannelPressureMessage{Channel: 4, Pressure: 64}},
        {[]byte{0xEF, 0x00, 0x40}, PitchBendMessage{Channel: 15, Value: 8192}},
    }
    for _, c := range cases {
        events, err := d.Process(c.in)
        require.NoError(t, err, "% X", c.in)
        require.Len(t, events, 1)
        assert.Equal(t, c.want, events[0].Message)
        assert.Equal(t, c.want.Type(), events[0].Type)
        assert.Equal(t, c.want.MidiChannel(), events[0].Channel)
        assert.False(t, events[0].Time.IsZero())
    }
}

func TestDispatcherReportsAndContinues(t *testing.T) {
    d := newTestDispatcher(NrpnOn)

    _, err := d.Process(nil)
    assert.ErrorIs(t, err, ErrMalformedBuffer)
    _, err = d.Process([]byte{})
    assert.ErrorIs(t, err, ErrMalformedBuffer)
    _, err = d.Process([]byte{0x90, 0x3C})
    assert.ErrorIs(t, err, ErrMalformedBuffer)
    _, err = d.Process([]byte{0x42, 0x00, 0x00})
    assert.ErrorIs(t, err, ErrUnrecognizedStatus)
    _, err = d.Process([]byte{0xF8})
    assert.ErrorIs(t, err, ErrUnrecognizedStatus)

    events, err := d.Process([]byte{0x90, 0x3C, 0x64})
    require.NoError(t, err)
    require.Len(t, events, 1)
    assert.Equal(t, NoteOn, events[0].Type)
}

func TestDispatcherMalformedDoesNotBreakNrpn(t *testing.T) {
    d := newTestDispatcher(NrpnOn)
    var all []Event
    for _, bt := range [][]byte{
        {0xB0, 99, 1},
        {0xB0, 98},       // 短すぎる → 捨てられる。NRPN 状態には影響しない
        {0xB0, 98, 2},
        {0x90, 60, 100},  // CC 以外は状態に影響しない
        {0xB0, 6, 3},
        {0xB0, 38, 4},
    } {
        events, _ := d.Process(bt)
        all = append(all, events...)
    }

    require.Len(t, all, 2)
    assert.Equal(t, NoteOn, all[0].Type)
    assert.Equal(t, Nrpn, all[1].Type)
    assert.Equal(t, NrpnMessage{Channel: 0, Parameter: 130, Value: 388}, all[1].Message)
}

func TestDispatcherNrpnModes(t *testing.T) {
    stream := [][]byte{{0xB5, 99, 0}, {0xB5, 98, 1}, {0xB5, 6, 2}, {0xB5, 38, 3}}
    count := func(mode NrpnMode) (ccs, nrpns int) {
        d := newTestDispatcher(mode)
        for _, bt := range stream {
            events, err := d.Process(bt)
            require.NoError(t, err)
            for _, e := range events {
                switch e.Type {
                case ControlChange:
                    ccs++
                case Nrpn:
                    nrpns++
                    assert.Equal(t, Channel(5), e.Channel)
                }
            }
        }
        return ccs, nrpns
    }

    ccs, nrpns := count(NrpnOff)
    assert.Equal(t, [2]int{4, 0}, [2]int{ccs, nrpns})
    ccs, nrpns = count(NrpnOn)
    assert.Equal(t, [2]int{0, 1}, [2]int{ccs, nrpns})
    ccs, nrpns = count(NrpnOnSendControlChange)
    assert.Equal(t, [2]int{4, 1}, [2]int{ccs, nrpns})
}

func TestDispatcherSetNrpnMode(t *testing.T) {
    d := newTestDispatcher(NrpnOff)
    assert.Equal(t, NrpnOff, d.NrpnMode())
    d.SetNrpnMode(NrpnOn)
    assert.Equal(t, NrpnOn, d.NrpnMode())

    events, err := d.Process([]byte{0xB0, 99, 1})
    require.NoError(t, err)
    assert.Empty(t, events)
    d.Reset()
    events, err = d.Process([]byte{0xB0, 98, 1})
    require.NoError(t, err)
    require.Len(t, events, 1)
    assert.Equal(t, ControlChange, events[0].Type)
}
