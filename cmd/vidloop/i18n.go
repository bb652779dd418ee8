// Package main provides localization for the vidloop CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Flag categories
		"Output":  "出力",
		"Capture": "キャプチャ",
		"Source":  "ソース",
		"Session": "セッション",
		"Debug":   "デバッグ",
		"Logging": "ログ",

		// Root command
		"Convert videos into looping gif, webp and mp4 clips": "動画をループするgif・webp・mp4クリップに変換",
		"vidloop converts videos through a hardware, hybrid or software path, falling back automatically and learning which path works for each codec.": "vidloopはハードウェア・ハイブリッド・ソフトウェアのいずれかのパスで動画を変換し、失敗時は自動でフォールバックしながらコーデックごとに最適なパスを学習します。",

		// Commands
		"Convert a video into a looping clip":                   "動画をループクリップに変換",
		"Show video metadata and the learned conversion path":   "動画のメタデータと学習済みの変換パスを表示",
		"Show environment capabilities and registered encoders": "実行環境の機能と登録済みエンコーダーを表示",
		"Show or clear the strategy history":                    "戦略履歴を表示または消去",

		// Common flags
		"YAML configuration file": "YAML設定ファイル",
		"Path to ffmpeg executable (falls back to FFMPEG_PATH, then PATH)": "ffmpeg実行ファイルのパス（未指定時はFFMPEG_PATH、次にPATH）",
		"Directory persisting the strategy history across runs":            "実行をまたいで戦略履歴を保存するディレクトリ",
		"Log level (debug, info, warn, error)":                             "ログレベル（debug, info, warn, error）",
		"Suppress all log output":                                          "全てのログ出力を抑制",

		// Convert flags
		"Output file path (default: source name with the format extension)":              "出力ファイルパス（デフォルト: 入力名に形式の拡張子）",
		"Output format (gif, webp, mp4)":                                                 "出力形式（gif, webp, mp4）",
		"Output format for the recommendation (gif, webp, mp4)":                          "推奨を調べる出力形式（gif, webp, mp4）",
		"Quality preset (low, medium, high)":                                             "品質プリセット（low, medium, high）",
		"Output scale factor (0-1]":                                                      "出力の縮小率（0-1]",
		"Output execution summary to file (Markdown format)":                             "実行サマリーをファイルに出力（Markdown形式）",
		"Target frame rate (default: 10)":                                                "目標フレームレート（デフォルト: 10）",
		"Maximum number of frames (0 = no cap)":                                          "最大フレーム数（0 = 無制限）",
		"Capture mode (auto, demuxer, track-processor, frame-callback, seek)":            "キャプチャモード（auto, demuxer, track-processor, frame-callback, seek）",
		"Force a conversion path (hardware, hybrid, software)":                           "変換パスを固定（hardware, hybrid, software）",
		"Fail instead of falling back to a more conservative path":                       "より保守的なパスにフォールバックせず失敗する",
		"Hard deadline of one encode call":                                               "1回のエンコードの制限時間",
		"Palette encoder workers (0 = number of CPUs)":                                   "パレットエンコーダーのワーカー数（0 = CPU数）",
		"Frame source backend (auto, ffmpeg, chrome)":                                    "フレームソースのバックエンド（auto, ffmpeg, chrome）",
		"Path to Chrome executable (falls back to CHROME_PATH env, then system default)": "Chrome実行ファイルのパス（未指定時はCHROME_PATH、次にシステムデフォルト）",
		"Run browser in non-headless mode":                                               "ブラウザを非ヘッドレスモードで実行",
		"Enable debug output":                                                            "デバッグ出力を有効化",
		"Directory for debug output":                                                     "デバッグ出力のディレクトリ",
		"Serve Prometheus metrics on this address (e.g. :9090)":                          "このアドレスでPrometheusメトリクスを提供（例: :9090）",

		// History flags
		"Remove every recorded outcome": "記録された結果を全て削除",

		// Runtime messages
		"Video argument is required": "動画の引数が必要です",
		"Failed to load config":      "設定の読み込みに失敗しました",
		"Conversion failed: %s":      "変換に失敗しました: %s",
		"History cleared":            "履歴を消去しました",
		"History needs --session-dir or session_dir in the config file": "履歴には --session-dir または設定ファイルの session_dir が必要です",
		"Recommended path": "推奨パス",
		"confidence":       "信頼度",
		"samples":          "サンプル",
		"No conversion history for this codec yet": "このコーデックの変換履歴はまだありません",
		"No conversion history yet":                "変換履歴はまだありません",

		// Reports
		"Codec":           "コーデック",
		"Container":       "コンテナ",
		"Resolution":      "解像度",
		"Duration":        "再生時間",
		"Frame Rate":      "フレームレート",
		"Bitrate":         "ビットレート",
		"unknown":         "不明",
		"Hardware decode": "ハードウェアデコード",
		"Format encode":   "形式別エンコード",
		"Workers":         "ワーカー数",
		"Low memory":      "低メモリ",
		"Mobile heritage": "モバイル系環境",
		"Device memory":   "デバイスメモリ",
		"Format":          "形式",
		"Encoder":         "エンコーダー",
		"Score":           "スコア",
		"Available":       "利用可能",
		"Time":            "日時",
		"Path":            "パス",
		"Outcome":         "結果",
		"Elapsed":         "所要時間",
		"success":         "成功",
		"cancelled":       "キャンセル",
		"failed (%s)":     "失敗 (%s)",

		// Summary content
		"Conversion Summary": "変換サマリー",
		"Generated":          "生成日時",
		"Run ID":             "実行ID",
		"Result":             "実行結果",
		"Settings":           "設定",
		"Attempts":           "試行",
		"Item":               "項目",
		"Value":              "値",
		"Status":             "状態",
		"Succeeded":          "成功",
		"Failed":             "失敗",
		"Cancelled":          "キャンセル",
		"Failure Phase":      "失敗フェーズ",
		"Error":              "エラー",
		"Conversion Path":    "変換パス",
		"Capture Mode":       "キャプチャモード",
		"Frame Count":        "フレーム数",
		"Output Size":        "出力サイズ",
		"File Size":          "ファイルサイズ",
		"File":               "ファイル",
		"Quality":            "品質",
		"Scale":              "縮小率",
		"Target FPS":         "目標FPS",
		"Default":            "デフォルト",
		"Max Frames":         "最大フレーム数",
		"Forced Path":        "固定パス",
		"Automatic":          "自動",
		"Fallback":           "フォールバック",
		"Enabled":            "有効",
		"Disabled":           "無効",
		"None":               "なし",
		"Generated by":       "生成:",
	})
}
