package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/ordkit/pkg/business/ordapi"
	"github.com/omeyang/ordkit/pkg/channel/xpush"
	"github.com/omeyang/ordkit/pkg/config/xconf"
)

// exitError 表示需要非零退出码但已完成输出的场景。
type exitError struct {
	code int
}

func (e *exitError) Error() string { return "" }

// usageError 表示参数使用错误，退出码 2。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

// 创建所有子命令。
func createCommands() []*cli.Command {
	return []*cli.Command{
		createEtchingCommand(),
		createInscriptionCommand(),
		createBalancesCommand(),
		createSearchCommand(),
		createTrendingCommand(),
		createHealthCommand(),
		createWatchCommand(),
	}
}

// loadSettings 加载配置：指定了 --config 时从文件加载，否则用内置缺省值。
func loadSettings(cmd *cli.Command) (xconf.Settings, error) {
	path := cmd.String("config")
	if path == "" {
		return xconf.DefaultSettings(), nil
	}
	cfg, err := xconf.New(path)
	if err != nil {
		return xconf.Settings{}, err
	}
	return cfg.Settings()
}

// withClient 构建客户端并执行 fn，结束后关闭客户端。
func withClient(ctx context.Context, cmd *cli.Command, fn func(ctx context.Context, c *ordapi.Client) error) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	client, err := ordapi.New(settings)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }() //nolint:errcheck // 退出路径

	ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()
	return fn(ctx, client)
}

// printJSON 以缩进 JSON 输出结果。
func printJSON(w io.Writer, v any) error {
	if w == nil {
		w = os.Stdout
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func listFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "每页条数 (1-100)", Value: 20},
		&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Usage: "分页偏移", Value: 0},
	}
}

func listOptions(cmd *cli.Command) ordapi.ListOptions {
	return ordapi.ListOptions{
		Limit:  cmd.Int("limit"),
		Offset: cmd.Int("offset"),
	}
}

// createEtchingCommand 创建 etching 子命令组。
func createEtchingCommand() *cli.Command {
	return &cli.Command{
		Name:    "etching",
		Aliases: []string{"e"},
		Usage:   "符文蚀刻查询",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "按名称查询单个蚀刻",
				ArgsUsage: "<name>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					name := cmd.Args().First()
					if name == "" {
						return &usageError{msg: "缺少蚀刻名称"}
					}
					return withClient(ctx, cmd, func(ctx context.Context, c *ordapi.Client) error {
						etching, err := c.GetEtching(ctx, name)
						if err != nil {
							return err
						}
						return printJSON(cmd.Root().Writer, etching)
					})
				},
			},
			{
				Name:  "list",
				Usage: "分页列出蚀刻",
				Flags: append(listFlags(),
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "名称模糊匹配"},
					&cli.StringFlag{Name: "sort", Usage: "排序方式 (newest/oldest/trending)"},
					&cli.StringFlag{Name: "period", Usage: "trending 统计周期 (24h/7d)"},
				),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withClient(ctx, cmd, func(ctx context.Context, c *ordapi.Client) error {
						page, err := c.ListEtchings(ctx, ordapi.EtchingFilter{
							ListOptions: listOptions(cmd),
							Query:       cmd.String("query"),
							Sort:        cmd.String("sort"),
							Period:      cmd.String("period"),
						})
						if err != nil {
							return err
						}
						return printJSON(cmd.Root().Writer, page)
					})
				},
			},
		},
	}
}

// createInscriptionCommand 创建 inscription 子命令组。
func createInscriptionCommand() *cli.Command {
	return &cli.Command{
		Name:    "inscription",
		Aliases: []string{"i"},
		Usage:   "铭文查询",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "按 ID 查询单个铭文",
				ArgsUsage: "<id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id := cmd.Args().First()
					if id == "" {
						return &usageError{msg: "缺少铭文 ID"}
					}
					return withClient(ctx, cmd, func(ctx context.Context, c *ordapi.Client) error {
						inscription, err := c.GetInscription(ctx, id)
						if err != nil {
							return err
						}
						return printJSON(cmd.Root().Writer, inscription)
					})
				},
			},
			{
				Name:  "list",
				Usage: "分页列出铭文",
				Flags: append(listFlags(),
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "内容模糊匹配"},
					&cli.StringFlag{Name: "address", Aliases: []string{"a"}, Usage: "按持有地址过滤"},
					&cli.StringFlag{Name: "content-type", Usage: "按 MIME 类型过滤"},
				),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withClient(ctx, cmd, func(ctx context.Context, c *ordapi.Client) error {
						page, err := c.ListInscriptions(ctx, ordapi.InscriptionFilter{
							ListOptions: listOptions(cmd),
							Query:       cmd.String("query"),
							Address:     cmd.String("address"),
							ContentType: cmd.String("content-type"),
						})
						if err != nil {
							return err
						}
						return printJSON(cmd.Root().Writer, page)
					})
				},
			},
		},
	}
}

// createBalancesCommand 创建 balances 子命令。
func createBalancesCommand() *cli.Command {
	return &cli.Command{
		Name:      "balances",
		Aliases:   []string{"b"},
		Usage:     "列出地址持有的符文余额",
		ArgsUsage: "<address>",
		Flags:     listFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			address := cmd.Args().First()
			if address == "" {
				return &usageError{msg: "缺少地址"}
			}
			return withClient(ctx, cmd, func(ctx context.Context, c *ordapi.Client) error {
				page, err := c.ListBalances(ctx, address, listOptions(cmd))
				if err != nil {
					return err
				}
				return printJSON(cmd.Root().Writer, page)
			})
		},
	}
}

// createSearchCommand 创建 search 子命令。
func createSearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Aliases:   []string{"s"},
		Usage:     "在蚀刻与铭文中并发搜索",
		ArgsUsage: "<query>",
		Flags:     listFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			query := cmd.Args().First()
			if query == "" {
				return &usageError{msg: "缺少搜索关键词"}
			}
			return withClient(ctx, cmd, func(ctx context.Context, c *ordapi.Client) error {
				results, err := c.Search(ctx, query, listOptions(cmd))
				if err != nil {
					return err
				}
				if results.Partial {
					for domain, derr := range results.Errors {
						fmt.Fprintf(os.Stderr, "警告: %s 搜索失败: %v\n", domain, derr)
					}
				}
				return printJSON(cmd.Root().Writer, results)
			})
		},
	}
}

// createTrendingCommand 创建 trending 子命令。
func createTrendingCommand() *cli.Command {
	return &cli.Command{
		Name:  "trending",
		Usage: "查询热门符文蚀刻",
		Flags: append(listFlags(),
			&cli.StringFlag{Name: "period", Aliases: []string{"p"}, Usage: "统计周期 (24h/7d)", Value: "24h"},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withClient(ctx, cmd, func(ctx context.Context, c *ordapi.Client) error {
				page, err := c.Trending(ctx, cmd.String("period"), listOptions(cmd))
				if err != nil {
					return err
				}
				return printJSON(cmd.Root().Writer, page)
			})
		},
	}
}

// createHealthCommand 创建 health 子命令。
// 存在不健康子系统时退出码为 1。
func createHealthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "探测各子系统健康状态",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withClient(ctx, cmd, func(ctx context.Context, c *ordapi.Client) error {
				health := c.HealthCheck(ctx)
				if err := printJSON(cmd.Root().Writer, health); err != nil {
					return err
				}
				names := make([]string, 0, len(health))
				for name := range health {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					if !health[name] {
						return &exitError{code: 1}
					}
				}
				return nil
			})
		},
	}
}

// createWatchCommand 创建 watch 子命令，订阅推送事件并持续输出。
func createWatchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Aliases:   []string{"w"},
		Usage:     "订阅推送事件并持续输出（Ctrl-C 退出）",
		ArgsUsage: "[etching|inscription|balance|block ...]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			kinds := watchKinds(cmd.Args().Slice())
			if len(kinds) == 0 {
				return &usageError{msg: "未知事件类别"}
			}

			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			client, err := ordapi.New(settings)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }() //nolint:errcheck // 退出路径

			if err := client.Connect(ctx); err != nil {
				return err
			}
			push := client.Push()
			for _, kind := range kinds {
				if err := push.Subscribe(string(kind), nil); err != nil {
					return err
				}
			}

			// 多个类别流合并为单一输出流，ctx 取消时退出
			merged := make(chan xpush.Envelope, 16)
			for _, kind := range kinds {
				stream, err := push.Messages(kind)
				if err != nil {
					return err
				}
				go func() {
					for {
						select {
						case env := <-stream:
							select {
							case merged <- env:
							case <-ctx.Done():
								return
							}
						case <-ctx.Done():
							return
						}
					}
				}()
			}

			out := cmd.Root().Writer
			for {
				select {
				case env := <-merged:
					event, err := ordapi.ParseEvent(env)
					if err != nil {
						fmt.Fprintf(os.Stderr, "警告: 无法解析事件: %v\n", err)
						continue
					}
					if err := printJSON(out, event); err != nil {
						return err
					}
				case <-ctx.Done():
					return nil
				}
			}
		},
	}
}

// watchKinds 把命令行参数映射为消息类别，无参数时订阅全部类别。
func watchKinds(args []string) []xpush.MessageKind {
	all := []xpush.MessageKind{xpush.KindEtching, xpush.KindInscription, xpush.KindBalance, xpush.KindBlock}
	if len(args) == 0 {
		return all
	}
	var kinds []xpush.MessageKind
	for _, arg := range args {
		for _, kind := range all {
			if arg == string(kind) {
				kinds = append(kinds, kind)
			}
		}
	}
	return kinds
}

