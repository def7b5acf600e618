package sentiment

const (
	// DefaultRatioThreshold 某一方向的词占比超过该值即判定为该方向
	DefaultRatioThreshold = 0.6
	// DefaultMinTermCount 多数方向至少需要命中的词数
	DefaultMinTermCount = 1
)

// Lexicon 描述分类使用的词表与阈值，可在配置文件中整体覆盖
type Lexicon struct {
	Positive []string `yaml:"positive" json:"positive"`
	Negative []string `yaml:"negative" json:"negative"`
	// Neutral 中性提示词：只做命中统计，不影响最终标签
	Neutral []string `yaml:"neutral" json:"neutral"`

	RatioThreshold float64 `yaml:"ratio_threshold" json:"ratioThreshold"`
	MinTermCount   int     `yaml:"min_term_count" json:"minTermCount"`
}

// 巴西经济新闻的默认词表（葡萄牙语）
var (
	defaultPositiveTerms = []string{
		// 宏观经济
		"crescimento", "alta", "subiu", "aumento", "lucro", "ganho", "melhora",
		"recuperação", "expansão", "otimista", "positivo", "benefício",
		"prosperidade", "sucesso", "oportunidade",
		// 金融市场
		"valorização", "rendimento", "investimento", "dividendos", "superávit", "receita",
		// 经济政策
		"acordo", "negociação", "cooperação", "parceria", "aliança", "estabilidade",
		// 指标
		"bilionário", "bilionários", "ranking", "liderança", "primeiro", "melhor",
	}

	defaultNegativeTerms = []string{
		// 宏观经济
		"queda", "baixa", "caiu", "redução", "perda", "prejuízo", "crise", "recessão",
		"desemprego", "inflação", "déficit", "deterioração", "declínio", "contração",
		// 金融市场
		"desvalorização", "calote", "inadimplência", "falência", "liquidação", "crash",
		// 政治与冲突
		"intimidação", "resistir", "conflito", "tensão", "disputa", "impasse", "sanção",
		"guerra", "ameaça", "retaliação", "embargo", "bloqueio",
		// 社会问题
		"corrupção", "escândalo", "investigação", "denúncia", "fraude",
	}

	defaultNeutralTerms = []string{
		"confirma", "anuncia", "divulga", "informa", "comunica", "declara",
		"afirma", "processo", "reunião", "encontro", "conversa", "telefone",
	}
)

// DefaultLexicon 返回默认词表的副本，调用方可以安全修改
func DefaultLexicon() Lexicon {
	return Lexicon{
		Positive:       append([]string(nil), defaultPositiveTerms...),
		Negative:       append([]string(nil), defaultNegativeTerms...),
		Neutral:        append([]string(nil), defaultNeutralTerms...),
		RatioThreshold: DefaultRatioThreshold,
		MinTermCount:   DefaultMinTermCount,
	}
}

// withDefaults 对未设置的字段使用默认值，配置文件只覆盖部分字段时使用
func (l Lexicon) withDefaults() Lexicon {
	def := DefaultLexicon()
	if len(l.Positive) == 0 {
		l.Positive = def.Positive
	}
	if len(l.Negative) == 0 {
		l.Negative = def.Negative
	}
	if l.Neutral == nil {
		l.Neutral = def.Neutral
	}
	if l.RatioThreshold <= 0 || l.RatioThreshold >= 1 {
		l.RatioThreshold = def.RatioThreshold
	}
	if l.MinTermCount <= 0 {
		l.MinTermCount = def.MinTermCount
	}
	return l
}
