package main

import (
    "fmt"
    "log"
    "os"
)

// これらは ldflags で上書き可能:
// go build -ldflags "-X main.version=1.2.3 -X main.commit=abcd123 -X main.date=2025-08-12T01:23:45Z"
var (
    version = "dev"
    commit  = "none"
    date    = "unknown"
)

func main() {
    if len(os.Args) < 2 {
        usage()
        os.Exit(2)
    }

    switch os.Args[1] {
    case "midi":
        runMidi(os.Args[2:])
    case "decode":
        runDecode(os.Args[2:])
    case "ls-devices", "list", "devices":
        runListDevices()
    case "init-config":
        runInitConfig(os.Args[2:])
    case "gen-config":
        runGenConfig(os.Args[2:])
    case "version", "-v", "--version":
        printVersion()
    case "help", "-h", "--help":
        if len(os.Args) > 2 {
            switch os.Args[2] {
            case "midi":
                midiUsage()
            case "decode":
                decodeUsage()
            default:
                usage()
            }
        } else {
            usage()
        }
    default:
        log.Printf("不明なサブコマンド: %s", os.Args[1])
        usage()
        os.Exit(2)
    }
}

func usage() {
    fmt.Println("midictl - MIDI 入力デコーダ（NRPN 対応）/ OBS シーン切替")
    fmt.Println("")
    fmt.Println("使用方法:")
    fmt.Println("  midictl <command> [options]")
    fmt.Println("")
    fmt.Println("コマンド:")
    fmt.Println("  midi        MIDI入力をデコードし、マッピングに従って OBS のシーンを切替")
    fmt.Println("  decode      16進バイト列をオフラインでデコード（引数または標準入力）")
    fmt.Println("  ls-devices  MIDI 入力デバイス一覧を表示")
    fmt.Println("  init-config 既定の設定ファイルを書き出す (-o path, -device, -force)")
    fmt.Println("  gen-config  OBS のシーン一覧から連番マッピングの設定を生成 (-addr, -type, -channel, -start, -o)")
    fmt.Println("  version     バージョン情報を表示")
    fmt.Println("")
    fmt.Println("ヘルプ:")
    fmt.Println("  midictl help midi     midi の詳細ヘルプ")
    fmt.Println("  midictl help decode   decode の詳細ヘルプ")
    fmt.Println("")
    fmt.Println("例:")
    fmt.Println("  midictl midi -device 'IAC Driver Bus 1' -nrpn on -map nrpn:1:300=SceneA -map 1:36=SceneB")
    fmt.Println("  midictl decode -nrpn on 'B0 63 02' 'B0 62 2C' 'B0 06 00' 'B0 26 01'")
    fmt.Println("  echo '83 7F 0B' | midictl decode")
}

func printVersion() {
    fmt.Printf("midictl %s (commit %s, built %s)\n", version, commit, date)
}
