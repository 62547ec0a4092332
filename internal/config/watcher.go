package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/nacos-group/nacos-sdk-go/v2/vo"
)

// StartWatch 监听配置变化，在变更时回调 onChange(old, new)
// 优先监听 Nacos 配置中心，如果 Nacos 未配置则跳过监听（使用本地文件配置时）
func StartWatch(ctx context.Context, onChange func(oldCfg, newCfg *Config)) error {
	nacosServerAddr := strings.TrimSpace(os.Getenv("NACOS_SERVER_ADDR"))
	if nacosServerAddr != "" {
		return startNacosWatch(ctx, onChange)
	}

	fmt.Println("[Config] Nacos 未配置，跳过配置监听")
	return nil
}

// startNacosWatch 启动 Nacos 配置监听
func startNacosWatch(ctx context.Context, onChange func(oldCfg, newCfg *Config)) error {
	configClient, dataID, group, err := newNacosClient()
	if err != nil {
		return err
	}
	nacosConfigClient = configClient

	err = configClient.ListenConfig(vo.ConfigParam{
		DataId: dataID,
		Group:  group,
		OnChange: func(namespace, group, dataId, data string) {
			fmt.Printf("[Config] Nacos 配置变更: namespace=%s, group=%s, dataId=%s\n",
				namespace, group, dataId)

			var newCfg Config
			if parseErr := parseByDataID(dataId, []byte(data), &newCfg); parseErr != nil {
				fmt.Printf("[Config] 解析 Nacos 配置失败: error=%v\n", parseErr)
				return
			}

			oldCfg := GetCurrent()

			// 彩票参数已锁定：保留旧 Lottery 段，其余照常更新
			if LotteryLocked() && oldCfg != nil {
				newCfg.Lottery = oldCfg.Lottery
				fmt.Println("[Config] 彩票参数已锁定，忽略对 Lottery 段的热更新")
			} else if validateErr := newCfg.Lottery.Validate(); validateErr != nil {
				fmt.Printf("[Config] 新配置的彩票参数非法，整体拒绝本次更新: error=%v\n", validateErr)
				return
			}

			SetCurrent(&newCfg)

			if onChange != nil {
				onChange(oldCfg, &newCfg)
			}

			fmt.Println("[Config] Nacos 配置已更新")
		},
	})
	if err != nil {
		return fmt.Errorf("failed to listen nacos config: %w", err)
	}

	fmt.Printf("[Config] Nacos 配置监听已启动: dataId=%s, group=%s\n", dataID, group)
	return nil
}
