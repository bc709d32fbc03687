package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fallback 当文本中没有任何可转写字符时使用
const Fallback = "n-a"

// cyrillic 俄语/乌克兰语/白俄罗斯语字母到拉丁字母的转写表（小写）。
// ъ 和 ь 不产生字符。
var cyrillic = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d",
	'е': "e", 'ё': "yo", 'ж': "zh", 'з': "z", 'и': "i",
	'й': "j", 'к': "k", 'л': "l", 'м': "m", 'н': "n",
	'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t",
	'у': "u", 'ф': "f", 'х': "h", 'ц': "ts", 'ч': "ch",
	'ш': "sh", 'щ': "sch", 'ъ': "", 'ы': "yi", 'ь': "",
	'э': "e", 'ю': "yu", 'я': "ya",
	// uk / be
	'є': "ye", 'і': "i", 'ї': "yi", 'ґ': "g", 'ў': "u",
}

var (
	nonAlnum  = regexp.MustCompile(`[^a-z0-9]+`)
	ampersand = regexp.MustCompile(`&amp;|&`)
	// é -> e, ñ -> n
	foldMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Transliterate 把文本转成小写，西里尔字母按表转写，拉丁字母去掉变音符号。
// 其余字符原样保留，由 Slugify 负责清理。
func Transliterate(text string) string {
	// 先组合再查表，否则 й、ё 会在去变音符号时退化成 и、е
	lower := norm.NFC.String(strings.ToLower(text))

	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if latin, ok := cyrillic[r]; ok {
			b.WriteString(latin)
			continue
		}
		b.WriteRune(r)
	}

	folded, _, err := transform.String(foldMarks, b.String())
	if err != nil {
		return b.String()
	}
	return folded
}

// Slugify 生成 URL 安全的 slug：小写，转写，空白和标点压缩为单个连字符
func Slugify(text string) string {
	text = ampersand.ReplaceAllString(text, " and ")
	s := nonAlnum.ReplaceAllString(Transliterate(text), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return Fallback
	}
	return s
}
