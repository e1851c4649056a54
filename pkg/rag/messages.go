package rag

import (
	"fmt"
	"time"
)

// User-facing texts. None of them carry internal error details.
const (
	// Welcome greets a new chat session.
	Welcome = "Chào bạn! Đây là chatbot RAG y tế thông minh.\n" +
		"Mình sẽ trả lời dựa trên tài liệu y khoa đáng tin cậy (Vinmec, WHO, v.v.).\n" +
		"Hỏi mình bất cứ điều gì về sức khỏe nhé!\n\n" +
		"Lưu ý: Đây chỉ là thông tin tham khảo. Hãy tham khảo ý kiến bác sĩ để được tư vấn chính xác."

	// SynthesisApology replaces an answer the model failed to produce.
	SynthesisApology = "Xin lỗi, hệ thống đang gặp sự cố khi sinh câu trả lời. " +
		"Vui lòng thử lại sau vài giây hoặc đặt câu hỏi khác nhé!"

	// GuardUnavailableReason is the denial reason when a safety check could
	// not run.
	GuardUnavailableReason = "Hệ thống kiểm duyệt tạm thời không khả dụng, vui lòng thử lại sau ít phút."
)

func denial(reason string) string {
	return "Xin lỗi, câu hỏi của bạn không đáp ứng được các tiêu chuẩn an toàn hoặc phù hợp.\n" +
		"Lý do: " + reason + "\n\n" +
		"Vui lòng thử lại với câu hỏi khác về sức khỏe hoặc y tế nhé!"
}

func cacheHitNote(elapsed time.Duration) string {
	return fmt.Sprintf("\n\n(Thời gian xử lý: %.2fs | Cache HIT - không cần retrieve)", elapsed.Seconds())
}

func answerNote(elapsed time.Duration, docs int) string {
	return fmt.Sprintf("\n\n(Thời gian xử lý: %.2fs | Docs retrieved: %d)", elapsed.Seconds(), docs)
}
