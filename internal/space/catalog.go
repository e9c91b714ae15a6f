// Package space はスペース（生成済みルームデザイン）の閲覧・作成機能を提供する。
package space

// CatalogOption はスタジオフォームの選択肢1件。
// Valueが送信値、Labelが表示名。
type CatalogOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// ColorOption は配色の選択肢。表示用のカラーコードを持つ。
type ColorOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Hex   string `json:"hex"`
}

// RoomTypes はスタジオで選択できる部屋の種類。
var RoomTypes = []CatalogOption{
	{Value: "bedroom", Label: "Bedroom"},
	{Value: "kitchen", Label: "Kitchen"},
	{Value: "office", Label: "Office"},
	{Value: "living_room", Label: "Living Room"},
	{Value: "bathroom", Label: "Bathroom"},
	{Value: "dining_room", Label: "Dining Room"},
	{Value: "study", Label: "Study"},
	{Value: "outdoor", Label: "Outdoor Space"},
}

// RoomThemes はスタジオで選択できるデザインテーマ。
var RoomThemes = []CatalogOption{
	{Value: "modern", Label: "Modern"},
	{Value: "rustic", Label: "Rustic"},
	{Value: "minimalist", Label: "Minimalist"},
	{Value: "industrial", Label: "Industrial"},
	{Value: "scandinavian", Label: "Scandinavian"},
	{Value: "bohemian", Label: "Bohemian"},
	{Value: "traditional", Label: "Traditional"},
	{Value: "contemporary", Label: "Contemporary"},
	{Value: "coastal", Label: "Coastal"},
	{Value: "eclectic", Label: "Eclectic"},
}

// ColorPreferences はスタジオで選択できる配色。
var ColorPreferences = []ColorOption{
	{Value: "yellow", Label: "Sunny Yellow", Hex: "#FFBE0B"},
	{Value: "orange", Label: "Vibrant Orange", Hex: "#FB5607"},
	{Value: "pink", Label: "Hot Pink", Hex: "#FF006E"},
	{Value: "purple", Label: "Royal Purple", Hex: "#8338EC"},
	{Value: "blue", Label: "Ocean Blue", Hex: "#3A86FF"},
	{Value: "neutral", Label: "Neutral Tones", Hex: "#EEEEEE"},
	{Value: "green", Label: "Natural Green", Hex: "#2EC4B6"},
	{Value: "red", Label: "Warm Red", Hex: "#E71D36"},
}

// RoomTypeByValue は部屋種類の選択肢をvalueで引く。
func RoomTypeByValue(value string) (CatalogOption, bool) {
	return optionByValue(RoomTypes, value)
}

// RoomThemeByValue はテーマの選択肢をvalueで引く。
func RoomThemeByValue(value string) (CatalogOption, bool) {
	return optionByValue(RoomThemes, value)
}

// ColorPreferenceByValue は配色の選択肢をvalueで引く。
func ColorPreferenceByValue(value string) (ColorOption, bool) {
	for _, opt := range ColorPreferences {
		if opt.Value == value {
			return opt, true
		}
	}
	return ColorOption{}, false
}

func optionByValue(options []CatalogOption, value string) (CatalogOption, bool) {
	for _, opt := range options {
		if opt.Value == value {
			return opt, true
		}
	}
	return CatalogOption{}, false
}
