package knowledge

import (
	"regexp"
	"strings"
)

// Chunk 表示分块后的文本结构
type Chunk struct {
	Index int
	Text  string
}

// Chunker 文本分块器：按句子边界切分，块间保留重叠
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker 创建分块器
func NewChunker(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: overlap,
	}
}

var (
	multiNewline = regexp.MustCompile(`\n+`)
	multiSpace   = regexp.MustCompile(` +`)
)

// Clean 清理提取产物：压缩连续换行与空格，去除首尾空白
func (c *Chunker) Clean(text string) string {
	text = multiNewline.ReplaceAllString(text, "\n")
	text = multiSpace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Split 将清理后的文本切分为多个chunk
//
// 窗口右边界未到文本末尾时，在窗口内回找最靠右的句子结束符，
// 在结束符之后切断，避免句子被拦腰截断。
// 起始位置每轮严格递增，重叠大于等于窗口时退化为无重叠推进。
func (c *Chunker) Split(text string) []Chunk {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}
	if n <= c.chunkSize {
		return []Chunk{{Index: 0, Text: text}}
	}

	var chunks []Chunk
	start := 0
	for start < n {
		end := start + c.chunkSize
		if end < n {
			if cut := lastSentenceEnd(runes, start, end); cut > start {
				end = cut + 1
			}
		}

		sliceEnd := end
		if sliceEnd > n {
			sliceEnd = n
		}
		chunkText := strings.TrimSpace(string(runes[start:sliceEnd]))
		if chunkText != "" {
			chunks = append(chunks, Chunk{
				Index: len(chunks),
				Text:  chunkText,
			})
		}

		next := end - c.chunkOverlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// lastSentenceEnd 返回 [start, end) 内最靠右的句子结束符位置，不存在时返回-1
func lastSentenceEnd(runes []rune, start, end int) int {
	for i := end - 1; i > start; i-- {
		switch runes[i] {
		case '。', '！', '？', '\n', '.':
			return i
		}
	}
	return -1
}
