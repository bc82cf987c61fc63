// Package version хранит сведения о сборке, которые задаются через -ldflags:
//
//	-X github.com/vladislavdragonenkov/cartstore/internal/version.version=v1.2.0
package version

import "fmt"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info returns version information populated via -ldflags.
func Info() (v, c, d string) { return version, commit, date }

// GetVersion возвращает версию сборки.
func GetVersion() string { return version }

// GetCommit возвращает хеш коммита.
func GetCommit() string { return commit }

// GetDate возвращает дату сборки.
func GetDate() string { return date }

// UserAgent возвращает значение заголовка User-Agent для исходящих HTTP-запросов.
func UserAgent() string {
	return "cart-service/" + version
}

func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}
