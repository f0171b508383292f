package helpers

import (
	encjson "encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/Jeffail/gabs"
	"github.com/Seklfreak/mirrorbot/models"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config is the persisted bot configuration. Keys it does not know about
// are kept as they are when the document is written back.
type Config struct {
	sync.Mutex

	path string
	doc  *gabs.Container
}

func defaultConfigDocument() *gabs.Container {
	doc := gabs.New()
	doc.Set([]models.Mapping{}, models.ConfigMappingsKey)
	doc.Set(models.TokenPlaceholder, models.ConfigTokenKey)
	doc.Set(models.DefaultPrefix, models.ConfigPrefixKey)
	return doc
}

// LoadConfig reads the config at path. A missing file is created with the default document.
func LoadConfig(path string) (config *Config, err error) {
	config = &Config{path: path}

	if _, err = os.Stat(path); os.IsNotExist(err) {
		config.doc = defaultConfigDocument()
		return config, config.Save()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening config %s", path)
	}
	defer file.Close()

	// numbers stay json.Number, snowflakes do not fit into a float64
	decoder := encjson.NewDecoder(file)
	decoder.UseNumber()
	config.doc, err = gabs.ParseJSONDecoder(decoder)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	return config, nil
}

func (c *Config) Path() string {
	return c.path
}

// GetString returns the string at the dotted path, fallback if it is missing or not a string.
func (c *Config) GetString(path, fallback string) string {
	c.Lock()
	defer c.Unlock()

	if value, ok := c.doc.Path(path).Data().(string); ok {
		return value
	}
	return fallback
}

// GetBool returns the bool at the dotted path, false if it is missing or not a bool.
func (c *Config) GetBool(path string) bool {
	c.Lock()
	defer c.Unlock()

	value, _ := c.doc.Path(path).Data().(bool)
	return value
}

// SetString sets a string at the dotted path, it is not written to disk until the next Save.
func (c *Config) SetString(path, value string) error {
	c.Lock()
	defer c.Unlock()

	_, err := c.doc.SetP(value, path)
	return err
}

func (c *Config) Token() string {
	return c.GetString(models.ConfigTokenKey, "")
}

func (c *Config) Prefix() string {
	return c.GetString(models.ConfigPrefixKey, "")
}

// Mappings decodes the mapping list of the document.
func (c *Config) Mappings() (mappings []models.Mapping, err error) {
	c.Lock()
	defer c.Unlock()

	mappings = make([]models.Mapping, 0)
	if !c.doc.Exists(models.ConfigMappingsKey) || c.doc.Path(models.ConfigMappingsKey).Data() == nil {
		return mappings, nil
	}

	err = json.Unmarshal(c.doc.Path(models.ConfigMappingsKey).Bytes(), &mappings)
	return mappings, errors.Wrap(err, "decoding mappings")
}

// SaveMappings replaces the mapping list and writes the whole document.
func (c *Config) SaveMappings(mappings []models.Mapping) error {
	c.Lock()
	defer c.Unlock()

	if mappings == nil {
		mappings = []models.Mapping{}
	}
	if _, err := c.doc.Set(mappings, models.ConfigMappingsKey); err != nil {
		return errors.Wrap(err, "setting mappings")
	}
	return c.write()
}

func (c *Config) Save() error {
	c.Lock()
	defer c.Unlock()

	return c.write()
}

// write replaces the file through a rename, readers never see a partial document.
func (c *Config) write() error {
	data := c.doc.BytesIndent("", "  ")

	dir := filepath.Dir(c.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "creating temporary config")
	}
	defer os.Remove(tmp.Name())

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing temporary config")
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "syncing temporary config")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temporary config")
	}

	return errors.Wrap(os.Rename(tmp.Name(), c.path), "replacing config")
}
