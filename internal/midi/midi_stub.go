//go:build !midi_native

package midi

import "errors"

var errNoNative = errors.New("native MIDI driver is not included in this build (build with -tags midi_native)")

// OpenInput は指定デバイスを開き、イベントチャネルを返す。
// デフォルトビルド（midi_nativeタグなし）では未対応。オフラインでの確認は `midictl decode` を使う。
func OpenInput(deviceName string, opts Options) (Input, <-chan Event, error) {
    return nil, nil, errNoNative
}

// ListInputs は利用可能なMIDI入力デバイス名を返す。
// デフォルトビルド（midi_nativeタグなし）では未対応。
func ListInputs() ([]string, error) {
    return nil, errNoNative
}
