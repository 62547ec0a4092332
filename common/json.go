package common

import jsoniter "github.com/json-iterator/go"

var (
	json = jsoniter.ConfigCompatibleWithStandardLibrary
	// jsonFast 用于内部缓存/消息体，不保证字段顺序
	jsonFast = jsoniter.ConfigFastest
)

func JsonMarshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func JsonMarshalToString(v interface{}) (string, error) {
	return json.MarshalToString(v)
}

// JsonMarshalFast 内部载荷序列化（Redis 缓存、outbox payload）
func JsonMarshalFast(v interface{}) ([]byte, error) {
	return jsonFast.Marshal(v)
}

func JsonMarshalToStringFast(v interface{}) (string, error) {
	return jsonFast.MarshalToString(v)
}

func JsonUnmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func JsonUnmarshalFromString(str string, v interface{}) error {
	return json.UnmarshalFromString(str, v)
}
