package app

import (
	"fmt"
	"sort"
	"strings"
)

type StartupSummary struct {
	Env           string
	Venue         string
	VenueMode     string
	VenueEndpoint string
	ReferencePath string
	JournalPath   string
	SeedPath      string
	SeedRows      int
	DispatchTTL   string
	Retry         map[string]string
	Notifiers     string
	HTTPAddr      string
}

func (s *StartupSummary) Print() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%*s\n", 40+len("启动配置摘要 (STARTUP SUMMARY)")/2, "启动配置摘要 (STARTUP SUMMARY)")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Println("[场所 (VENUE)]")
	fmt.Printf("  环境: %s\n", orDash(s.Env))
	fmt.Printf("  场所: %s (模式: %s)\n", orDash(s.Venue), orDash(s.VenueMode))
	if s.VenueEndpoint != "" {
		fmt.Printf("  接口: %s\n", s.VenueEndpoint)
	}
	fmt.Printf("  下单截止: %s\n", orDash(s.DispatchTTL))
	fmt.Println()

	fmt.Println("[存储 (STORAGE)]")
	fmt.Printf("  参考库: %s\n", orDash(s.ReferencePath))
	fmt.Printf("  报告库: %s\n", orDash(s.JournalPath))
	fmt.Printf("  种子文件: %s (%d 条)\n", orDash(s.SeedPath), s.SeedRows)
	fmt.Println()

	fmt.Println("[重试策略 (RETRY)]")
	if len(s.Retry) == 0 {
		fmt.Println("  (无配置)")
	} else {
		names := make([]string, 0, len(s.Retry))
		for name := range s.Retry {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("  %-8s %s\n", name, s.Retry[name])
		}
	}
	fmt.Println()

	fmt.Println("[通知与接口 (NOTIFY / HTTP)]")
	fmt.Printf("  通知: %s\n", orDash(s.Notifiers))
	fmt.Printf("  HTTP: %s\n", orDash(s.HTTPAddr))
	fmt.Println(strings.Repeat("=", 80))
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
