package midi

import "fmt"

// ControlFunction は CC 番号（0-127）の意味づけ。
// NRPN の判定に使うのは 99, 98, 6, 38 の4つだけで、それ以外は表示用。
type ControlFunction uint8

const (
    BankSelect                      ControlFunction = 0
    ModulationWheel                 ControlFunction = 1
    BreathController                ControlFunction = 2
    FootController                  ControlFunction = 4
    PortamentoTime                  ControlFunction = 5
    DataEntryMSB                    ControlFunction = 6
    ChannelVolume                   ControlFunction = 7
    Balance                         ControlFunction = 8
    Pan                             ControlFunction = 10
    ExpressionController            ControlFunction = 11
    LSBForControl0BankSelect        ControlFunction = 32
    LSBForControl6DataEntry         ControlFunction = 38
    DamperPedal                     ControlFunction = 64
    Portamento                      ControlFunction = 65
    Sostenuto                       ControlFunction = 66
    SoftPedal                       ControlFunction = 67
    DataIncrement                   ControlFunction = 96
    DataDecrement                   ControlFunction = 97
    NonRegisteredParameterNumberLSB ControlFunction = 98
    NonRegisteredParameterNumberMSB ControlFunction = 99
    RegisteredParameterNumberLSB    ControlFunction = 100
    RegisteredParameterNumberMSB    ControlFunction = 101
    AllSoundOff                     ControlFunction = 120
    ResetAllControllers             ControlFunction = 121
    LocalControl                    ControlFunction = 122
    AllNotesOff                     ControlFunction = 123

    // 履歴なしを表す番兵（7bit 外なので CC とは衝突しない）
    controlUndefined ControlFunction = 0xFF
)

var controlNames = map[ControlFunction]string{
    BankSelect:                      "BankSelect",
    ModulationWheel:                 "ModulationWheel",
    BreathController:                "BreathController",
    FootController:                  "FootController",
    PortamentoTime:                  "PortamentoTime",
    DataEntryMSB:                    "DataEntryMSB",
    ChannelVolume:                   "ChannelVolume",
    Balance:                         "Balance",
    Pan:                             "Pan",
    ExpressionController:            "ExpressionController",
    LSBForControl0BankSelect:        "LSBForControl0BankSelect",
    LSBForControl6DataEntry:         "LSBForControl6DataEntry",
    DamperPedal:                     "DamperPedal",
    Portamento:                      "Portamento",
    Sostenuto:                       "Sostenuto",
    SoftPedal:                       "SoftPedal",
    DataIncrement:                   "DataIncrement",
    DataDecrement:                   "DataDecrement",
    NonRegisteredParameterNumberLSB: "NonRegisteredParameterNumberLSB",
    NonRegisteredParameterNumberMSB: "NonRegisteredParameterNumberMSB",
    RegisteredParameterNumberLSB:    "RegisteredParameterNumberLSB",
    RegisteredParameterNumberMSB:    "RegisteredParameterNumberMSB",
    AllSoundOff:                     "AllSoundOff",
    ResetAllControllers:             "ResetAllControllers",
    LocalControl:                    "LocalControl",
    AllNotesOff:                     "AllNotesOff",
    controlUndefined:                "Undefined",
}

func (f ControlFunction) String() string {
    if s, ok := controlNames[f]; ok {
        return s
    }
    return fmt.Sprintf("Control%d", uint8(f))
}

// nextInNrpnChain は直前の機能から次に期待される機能を返す。
// チェーン外なら ok=false。
func nextInNrpnChain(prev ControlFunction) (ControlFunction, bool) {
    switch prev {
    case NonRegisteredParameterNumberMSB:
        return NonRegisteredParameterNumberLSB, true
    case NonRegisteredParameterNumberLSB:
        return DataEntryMSB, true
    case DataEntryMSB:
        return LSBForControl6DataEntry, true
    default:
        return controlUndefined, false
    }
}
