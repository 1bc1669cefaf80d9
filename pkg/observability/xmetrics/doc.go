// Package xmetrics 提供访问层各组件的 Prometheus 指标适配。
//
// 组件本身只依赖轻量的 Recorder 接口（xregion.Recorder、xpush.Recorder），
// 本包提供这些接口的 Prometheus 实现以及执行器统计的采集器：
//
//	reg := prometheus.NewRegistry()
//	cacheRec := xmetrics.NewCacheRecorder(reg, "ordkit")
//	manager, _ := xregion.New(xregion.WithRecorder(cacheRec), ...)
//
// 不需要指标时不引入本包即可，组件缺省使用空实现。
package xmetrics
