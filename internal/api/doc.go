// Package api 註冊主席會期與代表準備的 HTTP 路由。
//
// handlers 把請求轉成 session/prep store 的操作，回傳最新狀態，
// 並把 store 的錯誤對應到 HTTP 狀態碼。
package api
