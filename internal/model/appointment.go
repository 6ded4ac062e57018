package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// appointmentDateFormat は予約日時のワイヤーフォーマット。
// MockAPIとの送受信双方でISO-8601（RFC3339）テキストを使用する。
const appointmentDateFormat = time.RFC3339

// Appointment は1件の予約を表す。
// IDはサーバーが採番する（作成リクエストではクライアント生成の仮IDを送るが、
// サーバーが返したIDが常に正となる）。
type Appointment struct {
	ID     string
	Title  string
	Notes  string
	Date   time.Time
	UserID string
}

// appointmentJSON はAppointmentのワイヤー表現。
// Dateのみテキスト形式のため、(un)marshalの中間構造体として使用する。
type appointmentJSON struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Notes  string `json:"notes,omitempty"`
	Date   string `json:"date"`
	UserID string `json:"userId"`
}

// MarshalJSON はAppointmentをワイヤー表現に変換する。
// 日時はUTC・秒精度に正規化したISO-8601テキストとしてエンコードする。
func (a Appointment) MarshalJSON() ([]byte, error) {
	return json.Marshal(appointmentJSON{
		ID:     a.ID,
		Title:  a.Title,
		Notes:  a.Notes,
		Date:   a.Date.UTC().Truncate(time.Second).Format(appointmentDateFormat),
		UserID: a.UserID,
	})
}

// UnmarshalJSON はワイヤー表現からAppointmentを復元する。
// 日時テキストがISO-8601として解釈できない場合はエラーを返す。
func (a *Appointment) UnmarshalJSON(data []byte) error {
	var w appointmentJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	date, err := time.Parse(appointmentDateFormat, w.Date)
	if err != nil {
		return fmt.Errorf("invalid appointment date %q: %w", w.Date, err)
	}

	a.ID = w.ID
	a.Title = w.Title
	a.Notes = w.Notes
	a.Date = date.UTC()
	a.UserID = w.UserID
	return nil
}

// SortAppointmentsByDate は予約スライスを日時昇順（非減少）に整列する。
// コレクションの整列不変条件はこの関数で維持する。安定ソートのため、
// 同時刻の予約は元の相対順序を保つ。
func SortAppointmentsByDate(items []Appointment) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date.Before(items[j].Date)
	})
}
