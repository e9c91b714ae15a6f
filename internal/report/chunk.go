package report

// maxChunkSize はNotionのコードブロック1つあたりの最大文字数。
// Notion APIのrich_textは2000文字を超えるコンテンツを拒否する。
const maxChunkSize = 2000

// chunkString はsをsize文字（rune）ごとの連続した部分文字列に分割する。
// バイト単位ではなく文字単位で区切るため、マルチバイト文字が
// チャンク境界で分断されることはなく、各チャンクは常に正しいUTF-8になる。
// 最後の要素だけsizeより短くてよい。分割結果を順に連結すると
// 元の文字列が完全に復元される。空文字列は空スライスになる。
func chunkString(s string, size int) []string {
	if s == "" || size <= 0 {
		return nil
	}

	runes := []rune(s)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
