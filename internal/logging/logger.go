package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log 是整個服務共用的 logger，Bootstrap 之前也可安全使用
var Log = logrus.New()

// Bootstrap 依設定建立 logger；level 無法解析時退回 info
func Bootstrap(level, format string) {
	logger := logrus.New()
	logger.Out = os.Stdout

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	logger.SetReportCaller(lvl >= logrus.DebugLevel)

	Log = logger
	if err != nil {
		Log.Warnf("unknown log level %q, falling back to info", level)
	}
}
