// ordctl 是 ordinals 数据访问层的命令行客户端。
//
// 用法:
//
//	ordctl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-c, --config   配置文件路径（.yaml/.yml/.json，缺省使用内置配置）
//	-t, --timeout  命令超时时间 (默认: 30s)
//
// 命令:
//
//	etching get <name>      按名称查询符文蚀刻
//	etching list            分页列出符文蚀刻
//	inscription get <id>    按 ID 查询铭文
//	inscription list        分页列出铭文
//	balances <address>      列出地址持有的符文余额
//	search <query>          跨资源搜索
//	trending                查询热门符文蚀刻
//	health                  探测各子系统健康状态
//	watch [events...]       订阅推送事件并持续输出
//
// 退出码:
//
//	0: 命令执行成功（health 命令: 全部子系统健康）
//	1: 命令执行失败或存在不健康子系统（health 命令）
//	2: 参数错误（缺少必需参数、未知命令等）
//
// 示例:
//
//	ordctl etching get UNCOMMONGOODS
//	ordctl etching list --query DOG --limit 10
//	ordctl balances bc1q... --limit 50
//	ordctl trending --period 7d
//	ordctl -c ordkit.yaml watch etching block
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
)

// defaultTimeout 默认超时时间。
const defaultTimeout = 30 * time.Second

// 版本信息（可通过 -ldflags 注入）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

// createApp 创建 CLI 应用。
func createApp() *cli.Command {
	return &cli.Command{
		Name:    "ordctl",
		Usage:   "ordinals 数据访问层命令行客户端",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "命令超时时间",
				Value:   defaultTimeout,
			},
		},
		Commands:       createCommands(),
		DefaultCommand: "help",
		// 设计决策: 禁止 urfave/cli 直接调用 os.Exit，
		// 由 run() 统一处理退出码映射，确保与文档退出码契约一致。
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(os.Stderr, err)
			}
		},
	}
}

func run() int {
	app := createApp()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx, os.Args); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(os.Stderr, "参数错误: %v\n", usageErr)
			return 2
		}
		if _, ok := err.(cli.ExitCoder); ok {
			return 2
		}
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}
	return 0
}
