package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"futures-sim-go/infrastructure/logger"
	"futures-sim-go/internal/engine"
	"futures-sim-go/order"
)

// 离线模拟：固定种子推进行情，开局下一笔单，按交易日打印账户与风险。
// 相同参数的输出完全一致，可用于复现强平过程。
func main() {
	ticks := flag.Int("ticks", 600, "推进的 tick 数")
	seed1 := flag.Uint64("seed1", 42, "随机种子 1")
	seed2 := flag.Uint64("seed2", 7, "随机种子 2")
	symbol := flag.String("symbol", "", "开局下单的合约，留空取第一个品种的主力合约")
	side := flag.String("side", "buy", "buy 或 sell")
	qty := flag.Int("qty", 20, "开仓手数，0 表示不下单")
	cash := flag.Float64("cash", engine.DefaultInitialCash, "初始资金")
	noLiq := flag.Bool("noLiquidation", false, "关闭自动强平")
	out := flag.String("out", "", "结束后导出完整状态到该文件")
	verbose := flag.Bool("v", false, "输出引擎调试日志")
	flag.Parse()

	logCfg := logger.DefaultConfig()
	logCfg.Format = "console"
	logCfg.Level = "warn"
	if *verbose {
		logCfg.Level = "debug"
	}
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	cfg := engine.DefaultConfig()
	cfg.InitialCash = *cash
	cfg.Risk.AutoLiquidate = !*noLiq
	g, err := engine.New(cfg, engine.WithSeed(*seed1, *seed2), engine.WithLogger(log))
	if err != nil {
		log.Fatal("create game", zap.Error(err))
	}

	sym := *symbol
	if sym == "" {
		sym = g.Bootstrap().Products[0].MainContract
	}
	if *qty > 0 {
		q, ok := g.Quote(sym)
		if !ok {
			log.Fatal("unknown symbol", zap.String("symbol", sym))
		}
		res := g.PlaceOrder(engine.PlaceOrderRequest{
			Symbol: sym,
			Side:   order.Side(strings.ToLower(*side)),
			Effect: order.EffectOpen,
			Price:  q.Last,
			Qty:    *qty,
		})
		if !res.OK {
			log.Fatal("order rejected", zap.String("reason", res.Error))
		}
		fmt.Printf("开仓 %s %s %d 手 @ %.2f，委托 %d\n", sym, *side, *qty, q.Last, res.OrderID)
	}

	fmt.Printf("%-5s %-6s %-10s %-12s %-8s %s\n", "day", "tick", "last", "equity", "ratio", "risk")
	for i := 0; i < *ticks; i++ {
		res := g.AdvanceTick()
		if !res.DayRolled && i != *ticks-1 {
			continue
		}
		snap := g.Snapshot()
		ratio := "-"
		if snap.Account.MarginRatio != nil {
			ratio = fmt.Sprintf("%.3f", *snap.Account.MarginRatio)
		}
		fmt.Printf("%-5d %-6d %-10.2f %-12.2f %-8s %s\n",
			snap.Day, snap.Tick, snap.Market[sym].Last, snap.Account.Equity, ratio, snap.Account.RiskLevel)
	}

	snap := g.Snapshot()
	fmt.Printf("成交 %d 笔，持仓 %d 个，已实现盈亏 %.2f，手续费 %.2f\n",
		len(g.Trades()), len(snap.Positions), snap.Account.Realized, snap.Account.Fees)
	for _, e := range snap.RoundLog {
		if strings.HasPrefix(e.Title, "强") {
			fmt.Printf("  %s %s\n", e.Title, e.Detail)
		}
	}

	if *out != "" {
		st, err := g.Export()
		if err != nil {
			log.Fatal("export", zap.Error(err))
		}
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			log.Fatal("encode state", zap.Error(err))
		}
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			log.Fatal("write state", zap.Error(err))
		}
		fmt.Printf("状态已导出到 %s\n", *out)
	}
}
