package extraction

import "strings"

// Entry maps a canonical skill to its keyword variants, checked in order.
type Entry struct {
	Name     string
	Keywords []string
}

// Lexicon is read-only after construction and safe for concurrent use.
type Lexicon struct {
	technical []Entry
	soft      []string
	techIndex map[string]struct{}
}

var technicalSkills = []Entry{
	{Name: "javascript", Keywords: []string{"javascript", "js", "node.js", "nodejs", "express", "react", "angular", "vue"}},
	{Name: "typescript", Keywords: []string{"typescript", "ts"}},
	{Name: "python", Keywords: []string{"python", "django", "flask", "fastapi", "pandas", "numpy"}},
	{Name: "java", Keywords: []string{"java", "spring", "hibernate", "maven"}},
	{Name: "go", Keywords: []string{"golang", "go"}},
	{Name: "c++", Keywords: []string{"c++", "cpp"}},
	{Name: "c#", Keywords: []string{"c#", ".net", "asp.net"}},
	{Name: "php", Keywords: []string{"php", "laravel", "symfony"}},
	{Name: "ruby", Keywords: []string{"ruby", "rails"}},
	{Name: "rust", Keywords: []string{"rust", "cargo"}},
	{Name: "html", Keywords: []string{"html", "html5"}},
	{Name: "css", Keywords: []string{"css", "sass", "tailwind", "bootstrap"}},
	{Name: "sql", Keywords: []string{"sql", "mysql", "postgresql", "postgres", "sqlite", "oracle"}},
	{Name: "mongodb", Keywords: []string{"mongodb", "mongo", "mongoose"}},
	{Name: "redis", Keywords: []string{"redis"}},
	{Name: "graphql", Keywords: []string{"graphql", "apollo"}},
	{Name: "docker", Keywords: []string{"docker", "container", "dockerfile"}},
	{Name: "kubernetes", Keywords: []string{"kubernetes", "k8s", "helm"}},
	{Name: "aws", Keywords: []string{"aws", "amazon web services", "ec2", "s3", "lambda"}},
	{Name: "azure", Keywords: []string{"azure"}},
	{Name: "gcp", Keywords: []string{"gcp", "google cloud"}},
	{Name: "terraform", Keywords: []string{"terraform", "infrastructure as code"}},
	{Name: "ci/cd", Keywords: []string{"ci/cd", "jenkins", "github actions", "gitlab ci", "circleci"}},
	{Name: "git", Keywords: []string{"git", "github", "gitlab", "bitbucket"}},
	{Name: "linux", Keywords: []string{"linux", "unix", "bash", "shell scripting"}},
	{Name: "machine learning", Keywords: []string{"machine learning", "ml", "scikit-learn", "sklearn", "xgboost"}},
	{Name: "deep learning", Keywords: []string{"deep learning", "tensorflow", "pytorch", "keras", "neural network"}},
	{Name: "data analysis", Keywords: []string{"data analysis", "data analytics", "excel", "tableau", "power bi", "powerbi"}},
	{Name: "statistics", Keywords: []string{"statistics", "statistical", "probability"}},
	{Name: "big data", Keywords: []string{"big data", "hadoop", "spark", "kafka", "airflow"}},
	{Name: "rest api", Keywords: []string{"rest api", "restful", "rest", "api design"}},
	{Name: "microservices", Keywords: []string{"microservices", "microservice", "service mesh"}},
	{Name: "testing", Keywords: []string{"unit testing", "jest", "pytest", "junit", "selenium", "cypress"}},
	{Name: "android", Keywords: []string{"android", "kotlin"}},
	{Name: "ios", Keywords: []string{"ios", "swift", "objective-c"}},
	{Name: "figma", Keywords: []string{"figma", "sketch", "adobe xd"}},
}

var softSkills = []string{
	"communication",
	"leadership",
	"teamwork",
	"problem solving",
	"time management",
	"adaptability",
	"creativity",
	"critical thinking",
	"collaboration",
	"project management",
	"mentoring",
	"negotiation",
}

var defaultLexicon = NewLexicon(technicalSkills, softSkills)

// DefaultLexicon returns the process-wide built-in lexicon.
func DefaultLexicon() *Lexicon {
	return defaultLexicon
}

// NewLexicon copies its inputs; later mutation of the arguments does not leak in.
func NewLexicon(technical []Entry, soft []string) *Lexicon {
	l := &Lexicon{
		technical: make([]Entry, 0, len(technical)),
		soft:      make([]string, 0, len(soft)),
		techIndex: make(map[string]struct{}, len(technical)),
	}
	for _, e := range technical {
		name := strings.ToLower(strings.TrimSpace(e.Name))
		if name == "" {
			continue
		}
		kws := make([]string, 0, len(e.Keywords))
		for _, k := range e.Keywords {
			k = strings.ToLower(strings.TrimSpace(k))
			if k != "" {
				kws = append(kws, k)
			}
		}
		if len(kws) == 0 {
			kws = append(kws, name)
		}
		l.technical = append(l.technical, Entry{Name: name, Keywords: kws})
		l.techIndex[name] = struct{}{}
	}
	for _, s := range soft {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			l.soft = append(l.soft, s)
		}
	}
	return l
}

// Technical returns a copy of the technical entries in lexicon order.
func (l *Lexicon) Technical() []Entry {
	out := make([]Entry, len(l.technical))
	for i, e := range l.technical {
		out[i] = Entry{Name: e.Name, Keywords: append([]string(nil), e.Keywords...)}
	}
	return out
}

func (l *Lexicon) Soft() []string {
	return append([]string(nil), l.soft...)
}

func (l *Lexicon) IsTechnical(name string) bool {
	_, ok := l.techIndex[strings.ToLower(strings.TrimSpace(name))]
	return ok
}
