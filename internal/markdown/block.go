package markdown

import (
	"regexp"
	"strings"
)

// Group 1: language (optional), group 2: code.
var codeBlockRegexp = regexp.MustCompile("(?sm)^```([a-zA-Z0-9_+-]*)\\n(.*?)^```")

// Block is a segment of a markdown document, either plain text or fenced code.
type Block struct {
	Code     bool
	Language string
	Content  string
}

// ParseBlocks splits markdown content into text and code blocks.
func ParseBlocks(content string) []Block {
	var blocks []Block
	lastEnd := 0
	for _, match := range codeBlockRegexp.FindAllStringSubmatchIndex(content, -1) {
		if match[0] > lastEnd {
			blocks = append(blocks, Block{Content: content[lastEnd:match[0]]})
		}
		blocks = append(blocks, Block{
			Code:     true,
			Language: content[match[2]:match[3]],
			Content:  strings.Trim(content[match[4]:match[5]], "\n"),
		})
		lastEnd = match[1]
	}
	if lastEnd < len(content) {
		blocks = append(blocks, Block{Content: content[lastEnd:]})
	}
	return blocks
}

// CodeBlocks returns the fenced code blocks of content, in order.
func CodeBlocks(content string) []Block {
	var blocks []Block
	for _, block := range ParseBlocks(content) {
		if block.Code {
			blocks = append(blocks, block)
		}
	}
	return blocks
}
