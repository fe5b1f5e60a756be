package midi

import (
    "fmt"
    "time"
)

// Type は MIDI イベント種別。
type Type string

const (
    NoteOn          Type = "note_on"
    NoteOff         Type = "note_off"
    PolyKeyPressure Type = "poly_key_pressure"
    ControlChange   Type = "control_change"
    ProgramChange   Type = "program_change"
    ChannelPressure Type = "channel_pressure"
    PitchBend       Type = "pitch_bend"
    Nrpn            Type = "nrpn"
)

// Status はステータスバイトの上位ニブル。
type Status uint8

const (
    StatusNoteOff         Status = 0b1000_0000
    StatusNoteOn          Status = 0b1001_0000
    StatusPolyKeyPressure Status = 0b1010_0000
    StatusControlChange   Status = 0b1011_0000
    StatusProgramChange   Status = 0b1100_0000
    StatusChannelPressure Status = 0b1101_0000
    StatusPitchBend       Status = 0b1110_0000
)

const (
    statusMask  = 0b1111_0000
    channelMask = 0b0000_1111
    dataMask    = 0b0111_1111
)

// Channel は 0-15 のチャネル（ワイヤ上の値）。
type Channel uint8

// Number は表示用の 1-16 を返す。
func (c Channel) Number() int { return int(c&channelMask) + 1 }

func (c Channel) String() string { return fmt.Sprintf("CH%d", c.Number()) }

// Message はデコード済みのチャネルボイスメッセージ。
type Message interface {
    Type() Type
    MidiChannel() Channel
    // Encode はワイヤ形式のバイト列を返す。範囲外の値はマスクされる。
    Encode() []byte
}

// Event は Dispatcher が出力する型付きイベント。
type Event struct {
    Type    Type
    Channel Channel
    Message Message
    Time    time.Time
}

func newEvent(m Message, at time.Time) Event {
    return Event{Type: m.Type(), Channel: m.MidiChannel(), Message: m, Time: at}
}

func (e Event) String() string {
    return fmt.Sprintf("%s %s", e.Channel, e.Message)
}

// Input はオープン済みのMIDI入力デバイスを表す。
type Input interface {
    Close() error
}

// Options は OpenInput の設定。
type Options struct {
    Nrpn   NrpnMode
    Buffer int  // イベントチャネルの容量（0 なら 128）
    Debug  bool // 破棄したメッセージもログに出す
}
