package handlers

import "github.com/gofiber/fiber/v2"

// Language is one entry in the hint catalog offered at submission time.
// An empty selection lets the provider auto-detect.
type Language struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	NativeName string `json:"native_name"`
}

var languageCatalog = []Language{
	{Code: "en", Name: "English", NativeName: "English"},
	{Code: "ja", Name: "Japanese", NativeName: "日本語"},
	{Code: "ko", Name: "Korean", NativeName: "한국어"},
	{Code: "zh", Name: "Chinese", NativeName: "中文"},
	{Code: "es", Name: "Spanish", NativeName: "Español"},
	{Code: "fr", Name: "French", NativeName: "Français"},
	{Code: "de", Name: "German", NativeName: "Deutsch"},
	{Code: "it", Name: "Italian", NativeName: "Italiano"},
	{Code: "pt", Name: "Portuguese", NativeName: "Português"},
	{Code: "ru", Name: "Russian", NativeName: "Русский"},
}

// HandleLanguages returns the language hint catalog.
func HandleLanguages(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"languages": languageCatalog})
}
