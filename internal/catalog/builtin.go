package catalog

import _ "embed"

//go:embed programs.yaml
var builtin []byte

// Builtin 返回内置目录，找不到 programs.yaml 时使用。
func Builtin() *Catalog {
	c, err := Parse(builtin)
	if err != nil {
		panic("catalog: builtin programs.yaml: " + err.Error())
	}
	return c
}
