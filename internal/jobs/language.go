package jobs

import "golang.org/x/text/language"

// NormalizeLanguage は文字体系サブタグ付きの中国語コードを zh に揃えます。
// 例: zh-Hant, zh-Hans → zh。それ以外はそのまま返します。
func NormalizeLanguage(hint string) string {
	if hint == "" {
		return ""
	}
	tag, err := language.Parse(hint)
	if err != nil {
		return hint
	}
	base, _ := tag.Base()
	if _, conf := tag.Script(); conf != language.Exact || base.String() != "zh" {
		return hint
	}
	return base.String()
}
