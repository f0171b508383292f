package helpers

import (
	_ "embed"
	"fmt"
	"math/rand"
	"sync"

	"github.com/Jeffail/gabs"
)

//go:embed assets/i18n.json
var translationsFile []byte

var (
	translations     *gabs.Container
	translationsOnce sync.Once
)

// LoadTranslations parses the embedded translations, GetText calls it on first use.
func LoadTranslations() {
	translationsOnce.Do(func() {
		json, err := gabs.ParseJSON(translationsFile)
		Relax(err)

		translations = json
	})
}

// GetText returns the text at the dotted id, or the id itself if there is none.
// Objects resolve to their "__" key, arrays to a random item.
func GetText(id string) string {
	LoadTranslations()

	if !translations.ExistsP(id) {
		return id
	}

	item := translations.Path(id)

	if _, ok := item.Data().(map[string]interface{}); ok {
		item = item.Path("__")
	}

	switch value := item.Data().(type) {
	case string:
		return value
	case []interface{}:
		if len(value) > 0 {
			if text, ok := value[rand.Intn(len(value))].(string); ok {
				return text
			}
		}
	}

	return id
}

func GetTextF(id string, replacements ...interface{}) string {
	return fmt.Sprintf(GetText(id), replacements...)
}
