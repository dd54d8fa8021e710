package rag

import (
	"strings"
	"unicode/utf8"
)

// minTokenLength 短于等于该长度的查询词被丢弃
const minTokenLength = 2

// tokenize 查询分词：小写、按空白切分、丢弃长度 <= 2 的词、去重（保持顺序）
func tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	tokens := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) <= minTokenLength {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}
	return tokens
}

// keywordScores 全量扫描语料，按查询词子串命中比例打分，仅保留分数 > 0 的片段。
// 不做阈值与截断，排序与截断交给融合阶段。
func keywordScores(query string, corpus []EmbeddingRecord) []SearchResult {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return nil
	}

	var results []SearchResult
	for i := range corpus {
		text := strings.ToLower(corpus[i].Text)
		matched := 0
		for _, tok := range tokens {
			if strings.Contains(text, tok) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		results = append(results, resultFromRecord(&corpus[i], float64(matched)/float64(len(tokens))))
	}

	sortResults(results)
	return results
}
