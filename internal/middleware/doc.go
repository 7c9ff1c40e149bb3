// Package middleware 提供 HTTP 中間件。
//
// Identity 決定請求者是登入使用者 (Bearer token) 還是裝置 (X-Device-ID)，
// 其餘中間件負責請求日誌與 CORS。
package middleware
