// Package viper 封装 spf13/viper，提供 YAML/JSON 配置文件的加载与反序列化。
package viper

import (
	"path/filepath"

	"github.com/cockroachdb/errors"
	spfviper "github.com/spf13/viper"
)

// Config 封装 spf13/viper 实例。
type Config struct {
	v *spfviper.Viper
}

// New 创建一个空的 Config。
func New() *Config {
	return &Config{
		v: spfviper.New(),
	}
}

// Load 创建 Config 并加载 path 指向的配置文件。
func Load(path string) (*Config, error) {
	c := New()
	if err := c.LoadFile(path); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFile 将 YAML 或 JSON 配置文件加载到 Config 中，文件类型通过扩展名推断。
func (c *Config) LoadFile(path string) error {
	c.v.SetConfigFile(path)

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		c.v.SetConfigType("yaml")
	case ".json":
		c.v.SetConfigType("json")
	}

	if err := c.v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "failed to read config file %q", path)
	}
	return nil
}

// Unmarshal 将完整配置反序列化到 dst。
// dst 中已有的值只会被文件中出现的键覆盖，因此可以先填好默认值再调用。
func (c *Config) Unmarshal(dst any) error {
	return c.v.Unmarshal(dst)
}

// UnmarshalKey 将指定 key 对应的子配置反序列化到 dst。
func (c *Config) UnmarshalKey(key string, dst any) error {
	return c.v.UnmarshalKey(key, dst)
}

// IsSet 判断配置文件中是否出现了 key。
func (c *Config) IsSet(key string) bool {
	return c.v.IsSet(key)
}
