package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Orchestration level messages (info)
		"Converting %s to %s...":                                              "%s を %s に変換中...",
		"Converting %s (%s to %s) via %s path, reason: %s":                    "%s を変換中 (%s から %s), %s パス, 理由: %s",
		"Converted with %s path and %s encoder: %d frames, %d bytes in %d ms": "%s パスと %s エンコーダーで変換完了: %d フレーム, %d バイト, %d ms",
		"Conversion cancelled":                                                "変換がキャンセルされました",
		"Output saved to %s":                                                  "出力を %s に保存しました",
		"Summary saved to %s":                                                 "サマリーを %s に保存しました",
		"Interrupted, shutting down...":                                       "中断されました。シャットダウン中...",

		// Warnings
		"Falling back from %s to %s after %s failure: %v":                  "%[3]s の失敗により %[1]s から %[2]s にフォールバックします: %[4]v",
		"Capability probe failed, assuming software only: %v":              "機能の検出に失敗しました。ソフトウェアのみと仮定します: %v",
		"Capture incomplete: %d of %d frames":                              "キャプチャが不完全です: %d / %d フレーム",
		"Slow seeks (avg %s), reducing capture rate from %.1f to %.1f fps": "シークが遅いため (平均 %s)、キャプチャレートを %.1f から %.1f fps に下げます",
		"Encoder %s exceeded %s":                                           "エンコーダー %s が %s を超過しました",
		"Worker %d exceeded %s, replaced":                                  "ワーカー %d が %s を超過したため置き換えました",
		"Encoder %s re-registered, replacing previous registration":        "エンコーダー %s が再登録され、以前の登録を置き換えました",
		"No available encoder for %s (tried %s)":                           "%s で利用可能なエンコーダーがありません (試行: %s)",
		"Discarding strategy history with unexpected schema":               "想定外のスキーマの戦略履歴を破棄します",
		"Failed to load strategy history: %s":                              "戦略履歴の読み込みに失敗しました: %s",
		"Failed to delete strategy history: %s":                            "戦略履歴の削除に失敗しました: %s",
		"Failed to persist strategy history: %v":                           "戦略履歴の保存に失敗しました: %v",
		"Failed to write summary: %s":                                      "サマリーの書き込みに失敗しました: %s",
		"Frame source failed to open, trying next backend: %v":             "フレームソースを開けませんでした。次のバックエンドを試します: %v",
		"Metadata probe failed, continuing with unknown metadata: %v":      "メタデータの取得に失敗しました。不明なメタデータで続行します: %v",
		"Metrics server stopped: %v":                                       "メトリクスサーバーが停止しました: %v",
		"ffmpeg not found, hardware and software backends disabled: %v":    "ffmpeg が見つかりません。ハードウェアとソフトウェアのバックエンドを無効化します: %v",

		// Errors
		"Conversion failed on %s path during %s: %v": "%s パスの %s 中に変換が失敗しました: %v",

		// Capture (debug)
		"Extracting frames from %s (%s capture, hardware=%t)": "%s からフレームを抽出中 (%s キャプチャ, ハードウェア=%t)",
		"Extracted %d/%d frames with %s in %d ms":             "%[3]s で %[1]d/%[2]d フレームを %[4]d ms で抽出しました",
		"Captured %d frames with %s":                          "%[2]s で %[1]d フレームをキャプチャしました",
		"%s capture not supported by source":                  "ソースは %s キャプチャに対応していません",
		"%s capture produced no frames":                       "%s キャプチャでフレームが得られませんでした",
		"%s capture failed after %d frames: %v":               "%s キャプチャが %d フレーム後に失敗しました: %v",
		"Playback blocked, delegating to %s capture":          "再生がブロックされたため %s キャプチャに委譲します",
		"%s capture already ran, skipping":                    "%s キャプチャは実行済みのためスキップします",
		"Single frame requested, using %s capture":            "単一フレームのため %s キャプチャを使用します",
		"Playback ended after %d frames":                      "%d フレームで再生が終了しました",
		"Seek capture: %d frames at %.1f fps, timeout %s":     "シークキャプチャ: %d フレーム, %.1f fps, タイムアウト %s",
		"Seek capture finished: %d frames, %d downshifts":     "シークキャプチャ完了: %d フレーム, ダウンシフト %d 回",
		"Seek to %s timed out (%d in a row)":                  "%s へのシークがタイムアウトしました (%d 回連続)",
		"Single frame capture at %s":                          "%s で単一フレームをキャプチャ",
		"Track capture finished: %d frames":                   "トラックキャプチャ完了: %d フレーム",

		// Encode (debug)
		"Encoding %d frames at %.1f fps with %s":                             "%d フレームを %.1f fps で %s によりエンコード中",
		"Encoded %d bytes in %d ms":                                          "%d バイトを %d ms でエンコードしました",
		"Selected encoder %s for %s (score %.2f)":                            "エンコーダー %s を %s 用に選択しました (スコア %.2f)",
		"Registered encoder %s (score %.1f)":                                 "エンコーダー %s を登録しました (スコア %.1f)",
		"Marking encoder %s unavailable":                                     "エンコーダー %s を利用不可にします",
		"Quantised %d frames on %d workers in %s":                            "%d フレームを %d ワーカーで %s で減色しました",
		"Transcoded %s with %s in %s: %d bytes":                              "%s を %s で %s でトランスコードしました: %d バイト",
		"Palette encoder unavailable on hybrid path, using software backend": "ハイブリッドパスでパレットエンコーダーが利用できないため、ソフトウェアバックエンドを使用します",

		// Environment (debug)
		"Capabilities: %d hw decoders, workers=%d, memory=%d MiB, low-memory=%t": "機能: ハードウェアデコーダー %d, ワーカー=%d, メモリ=%d MiB, 低メモリ=%t",
		"Loaded %d history records":            "履歴を %d 件読み込みました",
		"Opened session store at %s":           "セッションストアを %s で開きました",
		"Serving metrics on %s":                "%s でメトリクスを提供中",
		"ffprobe not found: %v":                "ffprobe が見つかりません: %v",
		"mp4 probe failed, trying ffprobe: %v": "mp4 の解析に失敗しました。ffprobe を試します: %v",
	})
}
