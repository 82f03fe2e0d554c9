package usecase

import "errors"

var (
	// ErrEmptyInput はアップロードされたデータが空の場合に返されます。
	ErrEmptyInput = errors.New("input data is empty")
	// ErrInputTooLarge はアップロードが上限サイズを超えた場合に返されます。
	ErrInputTooLarge = errors.New("input exceeds maximum size")
	// ErrUndecodableImage は画像をデコードできない場合に返されます。
	ErrUndecodableImage = errors.New("image decode failed")
	// ErrVideoOpenFailed は動画コンテナを開けない場合に返されます。
	ErrVideoOpenFailed = errors.New("video open failed")
	// ErrInvalidVideo はフレーム数またはフレームレートが不正な場合に返されます。
	ErrInvalidVideo = errors.New("invalid video data")
	// ErrInvalidPolicy はポリシーテーブルの値が不正な場合に返されます。
	ErrInvalidPolicy = errors.New("invalid detection policy")
)

// IsInputError は呼び出し側の入力に起因するエラーかどうかを返します。
func IsInputError(err error) bool {
	return errors.Is(err, ErrEmptyInput) ||
		errors.Is(err, ErrInputTooLarge) ||
		errors.Is(err, ErrUndecodableImage) ||
		errors.Is(err, ErrVideoOpenFailed) ||
		errors.Is(err, ErrInvalidVideo)
}
