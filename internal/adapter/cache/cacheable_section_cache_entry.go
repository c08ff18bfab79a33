package cache

import (
	"fmt"
	"strings"

	"github.com/bornholm/sectioncache/internal/core/model"
)

type CacheableSectionCacheEntry struct {
	*model.SectionCacheEntry
}

// CacheKeys implements [Cacheable].
func (e *CacheableSectionCacheEntry) CacheKeys() []string {
	return []string{
		getSectionCacheKey(e.Key()),
	}
}

func NewCacheableSectionCacheEntry(entry *model.SectionCacheEntry) *CacheableSectionCacheEntry {
	return &CacheableSectionCacheEntry{entry}
}

var _ Cacheable = &CacheableSectionCacheEntry{}

func getSectionCacheKey(key model.SectionKey) string {
	return getCompositeCacheKey("section", key.ObjectTypeName, key.Name)
}

func getCompositeCacheKey(parts ...any) string {
	var sb strings.Builder
	for i, p := range parts {
		if i > 0 {
			sb.WriteString(model.KeySeparator)
		}
		sb.WriteString(fmt.Sprintf("%s", p))
	}
	return sb.String()
}
