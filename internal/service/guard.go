package service

import "sync"

// transferMu 进程内资金转移互斥锁
// 所有涉及钱包/奖池/金库变动的入口（选号扣费、领奖、金库提取）都先取此锁，
// 再开数据库事务；行锁之外多一层进程内串行化，杜绝同进程重入
var transferMu sync.Mutex
