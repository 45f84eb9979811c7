package sensor

import "encoding/json"

// State はセンサーの3値状態を表す。
type State int

const (
	// StateUnknown は未取得または取得失敗。
	StateUnknown State = iota
	// StateOn は今日のタスクがすべて完了している。
	StateOn
	// StateOff は未完了のタスクがある。
	StateOff
)

// StateFromBool は真偽値から状態を生成する。
func StateFromBool(v bool) State {
	if v {
		return StateOn
	}
	return StateOff
}

// Bool は状態を*boolで返す。不明の場合はnil。
func (s State) Bool() *bool {
	switch s {
	case StateOn:
		v := true
		return &v
	case StateOff:
		v := false
		return &v
	default:
		return nil
	}
}

// String はメトリクスやログ用のラベルを返す。
func (s State) String() string {
	switch s {
	case StateOn:
		return "on"
	case StateOff:
		return "off"
	default:
		return "unknown"
	}
}

// Text は表示用の状態テキストを返す。不明の場合は空文字列。
func (s State) Text() string {
	switch s {
	case StateOn:
		return "Completed"
	case StateOff:
		return "Incomplete"
	default:
		return ""
	}
}

// Icon は状態に応じたアイコン名を返す。不明の場合は空文字列。
func (s State) Icon() string {
	switch s {
	case StateOn:
		return "mdi:clipboard-check"
	case StateOff:
		return "mdi:clipboard-alert"
	default:
		return ""
	}
}

// MarshalJSON は状態をtrue/false/nullとしてエンコードする。
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Bool())
}
