package utils

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RawDocument 以欄位為單位保存原始 JSON，讓每個欄位可以獨立解碼
type RawDocument map[string]jsoniter.RawMessage

// ParseDocument 解析文件最外層；不是 JSON 物件時回傳錯誤
func ParseDocument(data []byte) (RawDocument, error) {
	var raw RawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		raw = RawDocument{}
	}
	return raw, nil
}

// Has 欄位是否存在且不是 null
func (d RawDocument) Has(key string) bool {
	v, ok := d[key]
	return ok && string(v) != "null"
}

// Field 將 key 解碼到 dst；欄位缺少、為 null 或型別不符時保留 dst 原值 (預設值) 並回傳 false
func Field[T any](d RawDocument, key string, dst *T) bool {
	if !d.Has(key) {
		return false
	}
	var v T
	if err := json.Unmarshal(d[key], &v); err != nil {
		return false
	}
	*dst = v
	return true
}

// Slice 與 Field 相同，但保證結果不是 nil (非陣列欄位會被換成空陣列)
func Slice[T any](d RawDocument, key string, dst *[]T) bool {
	ok := Field(d, key, dst)
	if *dst == nil {
		*dst = []T{}
	}
	return ok
}

// Map 與 Field 相同，但保證結果不是 nil
func Map[K comparable, V any](d RawDocument, key string, dst *map[K]V) bool {
	ok := Field(d, key, dst)
	if *dst == nil {
		*dst = map[K]V{}
	}
	return ok
}

// Each 逐筆解碼陣列欄位，無法解碼的元素直接略過
func Each[T any](d RawDocument, key string, fn func(T)) bool {
	var items []jsoniter.RawMessage
	if !Field(d, key, &items) {
		return false
	}
	for _, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			continue
		}
		fn(v)
	}
	return true
}

// Marshal 以與標準函式庫相容的設定編碼
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal 以與標準函式庫相容的設定解碼
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
