package midi

import "fmt"

type NoteOffMessage struct {
    Channel  Channel
    Key      uint8
    Velocity uint8
}

type NoteOnMessage struct {
    Channel  Channel
    Key      uint8
    Velocity uint8
}

type PolyKeyPressureMessage struct {
    Channel  Channel
    Key      uint8
    Pressure uint8
}

type ControlChangeMessage struct {
    Channel Channel
    Control uint8
    Value   uint8
}

type ProgramChangeMessage struct {
    Channel Channel
    Program uint8
}

type ChannelPressureMessage struct {
    Channel  Channel
    Pressure uint8
}

// PitchBendMessage の Value は 14bit（0-16383、中央 8192）。
type PitchBendMessage struct {
    Channel Channel
    Value   uint16
}

func (NoteOffMessage) Type() Type { return NoteOff }
func (NoteOnMessage) Type() Type { return NoteOn }
func (PolyKeyPressureMessage) Type() Type { return PolyKeyPressure }
func (ControlChangeMessage) Type() Type { return ControlChange }
func (ProgramChangeMessage) Type() Type { return ProgramChange }
func (ChannelPressureMessage) Type() Type { return ChannelPressure }
func (PitchBendMessage) Type() Type { return PitchBend }

func (m NoteOffMessage) MidiChannel() Channel         { return m.Channel }
func (m NoteOnMessage) MidiChannel() Channel          { return m.Channel }
func (m PolyKeyPressureMessage) MidiChannel() Channel { return m.Channel }
func (m ControlChangeMessage) MidiChannel() Channel   { return m.Channel }
func (m ProgramChangeMessage) MidiChannel() Channel   { return m.Channel }
func (m ChannelPressureMessage) MidiChannel() Channel { return m.Channel }
func (m PitchBendMessage) MidiChannel() Channel       { return m.Channel }

func (m NoteOffMessage) Encode() []byte {
    return []byte{statusByte(StatusNoteOff, m.Channel), dataByte(m.Key), dataByte(m.Velocity)}
}

func (m NoteOnMessage) Encode() []byte {
    return []byte{statusByte(StatusNoteOn, m.Channel), dataByte(m.Key), dataByte(m.Velocity)}
}

func (m PolyKeyPressureMessage) Encode() []byte {
    return []byte{statusByte(StatusPolyKeyPressure, m.Channel), dataByte(m.Key), dataByte(m.Pressure)}
}

func (m ControlChangeMessage) Encode() []byte {
    return []byte{statusByte(StatusControlChange, m.Channel), dataByte(m.Control), dataByte(m.Value)}
}

func (m ProgramChangeMessage) Encode() []byte {
    return []byte{statusByte(StatusProgramChange, m.Channel), dataByte(m.Program)}
}

func (m ChannelPressureMessage) Encode() []byte {
    return []byte{statusByte(StatusChannelPressure, m.Channel), dataByte(m.Pressure)}
}

// Encode は LSB, MSB の順に 7bit ずつ分割する。
func (m PitchBendMessage) Encode() []byte {
    return []byte{
        statusByte(StatusPitchBend, m.Channel),
        byte(m.Value & dataMask),
        byte((m.Value >> 7) & dataMask),
    }
}

func (m NoteOffMessage) String() string {
    return fmt.Sprintf("NoteOff key=%d vel=%d", m.Key, m.Velocity)
}

func (m NoteOnMessage) String() string {
    return fmt.Sprintf("NoteOn key=%d vel=%d", m.Key, m.Velocity)
}

func (m PolyKeyPressureMessage) String() string {
    return fmt.Sprintf("PolyKeyPressure key=%d pressure=%d", m.Key, m.Pressure)
}

func (m ControlChangeMessage) String() string {
    return fmt.Sprintf("ControlChange cc=%d(%s) value=%d", m.Control, m.Function(), m.Value)
}

func (m ProgramChangeMessage) String() string {
    return fmt.Sprintf("ProgramChange program=%d", m.Program)
}

func (m ChannelPressureMessage) String() string {
    return fmt.Sprintf("ChannelPressure pressure=%d", m.Pressure)
}

func (m PitchBendMessage) String() string {
    return fmt.Sprintf("PitchBend value=%d", m.Value)
}

// Function は CC 番号の意味づけを返す。
func (m ControlChangeMessage) Function() ControlFunction {
    return ControlFunction(m.Control & dataMask)
}

func statusByte(s Status, ch Channel) byte {
    return byte(s) | byte(ch&channelMask)
}

func dataByte(v uint8) byte {
    return v & dataMask
}
