package midi

import (
    "errors"
    "fmt"
)

var (
    // ErrMalformedBuffer は空・長さ不一致・ステータス不一致・データバイトの最上位ビットが立っている場合。
    ErrMalformedBuffer = errors.New("malformed midi buffer")
    // ErrUnrecognizedStatus は上位ニブルが既知のチャネルボイスメッセージに該当しない場合。
    ErrUnrecognizedStatus = errors.New("unrecognized midi status")
    // ErrNrpnDecode は4つの CC から NRPN を組み立てられなかった場合。
    ErrNrpnDecode = errors.New("could not decode nrpn message")
)

// wireLength はステータスごとの固定長。
func wireLength(s Status) (int, bool) {
    switch s {
    case StatusNoteOff, StatusNoteOn, StatusPolyKeyPressure, StatusControlChange, StatusPitchBend:
        return 3, true
    case StatusProgramChange, StatusChannelPressure:
        return 2, true
    default:
        return 0, false
    }
}

// Decode は先頭バイトの上位ニブルで種別を選んでデコードする。
func Decode(buf []byte) (Message, error) {
    if len(buf) == 0 {
        return nil, fmt.Errorf("%w: empty message", ErrMalformedBuffer)
    }
    s := Status(buf[0] & statusMask)
    if _, ok := wireLength(s); !ok {
        return nil, fmt.Errorf("%w: %02X", ErrUnrecognizedStatus, byte(s))
    }
    return DecodeAs(buf, s)
}

// DecodeAs は buf を status で指定された種別としてデコードする。
// 失敗時は ErrMalformedBuffer を包んだエラーを返し、panic はしない。
func DecodeAs(buf []byte, status Status) (Message, error) {
    want, ok := wireLength(status)
    if !ok {
        return nil, fmt.Errorf("%w: %02X", ErrUnrecognizedStatus, byte(status))
    }
    if len(buf) == 0 {
        return nil, fmt.Errorf("%w: empty message", ErrMalformedBuffer)
    }
    if got := Status(buf[0] & statusMask); got != status {
        return nil, fmt.Errorf("%w: status %02X, want %02X", ErrMalformedBuffer, byte(got), byte(status))
    }
    if len(buf) != want {
        return nil, fmt.Errorf("%w: %d bytes, want %d for status %02X", ErrMalformedBuffer, len(buf), want, byte(status))
    }
    for i := 1; i < len(buf); i++ {
        if buf[i]&^dataMask != 0 {
            return nil, fmt.Errorf("%w: data byte %d has high bit set (%02X)", ErrMalformedBuffer, i, buf[i])
        }
    }

    ch := Channel(buf[0] & channelMask)
    switch status {
    case StatusNoteOff:
        return NoteOffMessage{Channel: ch, Key: buf[1], Velocity: buf[2]}, nil
    case StatusNoteOn:
        return NoteOnMessage{Channel: ch, Key: buf[1], Velocity: buf[2]}, nil
    case StatusPolyKeyPressure:
        return PolyKeyPressureMessage{Channel: ch, Key: buf[1], Pressure: buf[2]}, nil
    case StatusControlChange:
        return ControlChangeMessage{Channel: ch, Control: buf[1], Value: buf[2]}, nil
    case StatusProgramChange:
        return ProgramChangeMessage{Channel: ch, Program: buf[1]}, nil
    case StatusChannelPressure:
        return ChannelPressureMessage{Channel: ch, Pressure: buf[1]}, nil
    default: // StatusPitchBend
        return PitchBendMessage{Channel: ch, Value: uint16(buf[1]) | uint16(buf[2])<<7}, nil
    }
}
