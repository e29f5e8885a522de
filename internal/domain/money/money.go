package money

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// 最小通貨単位（セント）へ変換。端数は四捨五入（0から遠い方）に統一する。
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// 表示・プロバイダ送信用の固定小数2桁文字列
func Format(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// price × quantity
func LineTotal(price decimal.Decimal, qty int64) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(qty))
}
