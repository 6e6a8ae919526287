package services

import (
	"regexp"
	"strings"
)

var mentionPattern = regexp.MustCompile(`@(\w+)`)

// ExtractMentions 提取文本中的 @handle，按首次出现顺序去重（大小写不敏感），最多返回 limit 个。
func ExtractMentions(text string, limit int) []string {
	if text == "" || limit <= 0 {
		return nil
	}
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]struct{}, len(matches))
	handles := make([]string, 0, len(matches))
	for _, m := range matches {
		handle := strings.ToLower(m[1])
		if _, ok := seen[handle]; ok {
			continue
		}
		seen[handle] = struct{}{}
		handles = append(handles, handle)
		if len(handles) == limit {
			break
		}
	}
	return handles
}
