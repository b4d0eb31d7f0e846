package model

import (
	"github.com/samber/lo"

	"github.com/foxssake/nohub/pkg/util/typeutil"
)

// Property 是大厅数据中的一个键值对。
type Property struct {
	Key   string
	Value string
}

// Properties 是保持插入顺序的字符串键值表，键唯一。
//
// 修改操作均返回新的 Properties，不影响原值。
type Properties []Property

// PropertiesFromPairs 按顺序构造 Properties，重复的键保留第一次出现的位置、最后一次出现的值。
func PropertiesFromPairs(pairs ...Property) Properties {
	var props Properties
	for _, p := range pairs {
		props = props.With(p.Key, p.Value)
	}
	return props
}

func (p Properties) Get(key string) (string, bool) {
	prop, ok := lo.Find(p, func(item Property) bool { return item.Key == key })
	return prop.Value, ok
}

// With 返回设置了 key 的新 Properties。已有的键原位更新，新键追加在末尾。
func (p Properties) With(key, value string) Properties {
	result := p.Clone()
	_, idx, ok := lo.FindIndexOf(result, func(item Property) bool { return item.Key == key })
	if ok {
		result[idx].Value = value
		return result
	}
	return append(result, Property{Key: key, Value: value})
}

func (p Properties) Len() int {
	return len(p)
}

func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	result := make(Properties, len(p))
	copy(result, p)
	return result
}

// Project 按 keys 投影出子集：keys 为 nil 时返回全部，为空时返回空，
// 未知的键被忽略，结果保持原数据的顺序。
func (p Properties) Project(keys []string) Properties {
	if keys == nil {
		return p.Clone()
	}
	wanted := typeutil.NewSet(keys...)
	return lo.Filter(p, func(item Property, _ int) bool { return wanted.Contain(item.Key) })
}

// Map 以 map 形式返回全部键值。
func (p Properties) Map() map[string]string {
	return lo.SliceToMap(p, func(item Property) (string, string) { return item.Key, item.Value })
}
